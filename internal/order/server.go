package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/storefront/pkg/auth"
	"github.com/nao1215/storefront/pkg/config"
	"github.com/nao1215/storefront/pkg/database"
	"github.com/nao1215/storefront/pkg/httpclient"
	"github.com/nao1215/storefront/pkg/middleware"
)

// routePolicies はorderサービスの全ルートの認証ポリシー。
var routePolicies = middleware.PolicyTable{
	{Method: http.MethodGet, Path: "/health"}:                   middleware.Public(),
	{Method: http.MethodPost, Path: "/api/v1/orders"}:           middleware.Authenticated(),
	{Method: http.MethodGet, Path: "/api/v1/orders"}:            middleware.Authenticated(),
	{Method: http.MethodGet, Path: "/api/v1/orders/:id"}:        middleware.Authenticated(),
	{Method: http.MethodPut, Path: "/api/v1/orders/:id/status"}: middleware.Authenticated("admin"),
}

// RoutePolicies はorderサービスの全ルートの認証ポリシーの複製を返す。
// gatewayは転送前に同じポリシーを適用する。
func RoutePolicies() middleware.PolicyTable {
	return maps.Clone(routePolicies)
}

// Server はorderサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store は注文の永続化先。
	store *Store
	// catalog は注文明細の商品を確認する。
	catalog ProductCatalog
	// validator はトークンを検証する。
	validator middleware.TokenValidator
	// logger はサービスのロガー。
	logger zerolog.Logger
}

// NewServer は新しいorderサーバーを生成する。
// 商品の存在確認にはPRODUCT_SERVICE_URLのproductサービスを使用する。
func NewServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL, migrationsFS, migrationsDir)
	if err != nil {
		return nil, err
	}

	catalog := NewRemoteCatalog(httpclient.New(cfg.ProductServiceURL))
	s, err := newServer(db, cfg.Port, catalog, auth.NewValidator(cfg.JWTSecret), logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// newServer は接続済みのDBからサーバーを組み立てる。
func newServer(db *sql.DB, port string, catalog ProductCatalog, validator middleware.TokenValidator, logger zerolog.Logger) (*Server, error) {
	s := &Server{
		router:    gin.New(),
		port:      port,
		db:        db,
		store:     NewStore(db),
		catalog:   catalog,
		validator: validator,
		logger:    logger,
	}
	s.setupRoutes()

	if err := routePolicies.Verify(s.router.Routes()); err != nil {
		return nil, err
	}
	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.Guard(routePolicies, s.validator))

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "order"})
	})

	orders := s.router.Group("/api/v1/orders")
	{
		// 注文作成
		orders.POST("", s.handleCreate())
		// 自分の注文一覧取得
		orders.GET("", s.handleList())
		// 注文詳細取得
		orders.GET("/:id", s.handleGet())
		// 注文ステータス更新
		orders.PUT("/:id/status", s.handleUpdateStatus())
	}
}

// orderItemRequest は注文明細のJSON構造。
type orderItemRequest struct {
	// ProductID は商品ID。
	ProductID string `json:"product_id" binding:"required"`
	// Quantity は数量。
	Quantity int `json:"quantity" binding:"required,min=1"`
	// Price は単価。
	Price *float64 `json:"price" binding:"required,gte=0"`
}

// createOrderRequest は注文作成リクエストのJSON構造。
// 注文者は認証済みIDから決定するため、リクエストには含めない。
type createOrderRequest struct {
	// Items は注文明細。
	Items []orderItemRequest `json:"order_items" binding:"required,min=1,dive"`
}

// updateStatusRequest は注文ステータス更新リクエストのJSON構造。
type updateStatusRequest struct {
	// Status は新しいステータス。
	Status string `json:"status" binding:"required"`
}

// handleCreate は注文作成を処理するハンドラを返す。
// 全明細の商品がproductサービスに存在することを確認してから保存する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.RequireIdentity(c)
		if !ok {
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		items := make([]NewItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, NewItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: *it.Price})
		}

		token, _ := middleware.BearerToken(c.GetHeader("Authorization"))
		ctx := httpclient.WithBearerToken(c.Request.Context(), token)
		if err := s.checkProducts(ctx, items); err != nil {
			switch {
			case errors.Is(err, ErrUnknownProduct):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("商品の存在確認に失敗")
				c.JSON(http.StatusBadGateway, gin.H{"error": "商品の確認に失敗しました"})
			}
			return
		}

		o, err := s.store.Create(c.Request.Context(), claims.Subject, items)
		if err != nil {
			s.internalError(c, err, "注文の作成に失敗しました")
			return
		}
		c.JSON(http.StatusCreated, o)
	}
}

// checkProducts は明細の商品を重複なく確認する。
func (s *Server) checkProducts(ctx context.Context, items []NewItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		if err := s.catalog.Exists(ctx, it.ProductID); err != nil {
			return err
		}
	}
	return nil
}

// handleList は認証済みユーザーの注文一覧取得を処理するハンドラを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.RequireIdentity(c)
		if !ok {
			return
		}

		orders, err := s.store.ListByUser(c.Request.Context(), claims.Subject)
		if err != nil {
			s.internalError(c, err, "注文一覧の取得に失敗しました")
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

// handleGet は注文詳細取得を処理するハンドラを返す。
// 注文が現在のユーザーのものであることを確認する。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.RequireIdentity(c)
		if !ok {
			return
		}

		o, err := s.store.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "注文が見つかりません"})
			return
		}
		if err != nil {
			s.internalError(c, err, "注文の取得に失敗しました")
			return
		}

		if o.UserID != claims.Subject {
			c.JSON(http.StatusForbidden, gin.H{"error": "この注文へのアクセス権がありません"})
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// handleUpdateStatus は注文ステータス更新を処理するハンドラを返す。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		status := Status(req.Status)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("不正なステータスです: %s", req.Status)})
			return
		}

		o, err := s.store.UpdateStatus(c.Request.Context(), c.Param("id"), status)
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "注文が見つかりません"})
			return
		}
		if err != nil {
			s.internalError(c, err, "注文ステータスの更新に失敗しました")
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// internalError はエラーをログに出力して500を返す。
func (s *Server) internalError(c *gin.Context, err error, msg string) {
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
