package product

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
	"github.com/nao1215/storefront/pkg/middleware"
)

// routePolicies はproductサービスの全ルートの認証ポリシー。
// 閲覧は公開し、作成と更新はuserロール、削除はadminロールに限定する。
var routePolicies = middleware.PolicyTable{
	{Method: http.MethodGet, Path: "/health"}:                 middleware.Public(),
	{Method: http.MethodGet, Path: "/api/v1/products"}:        middleware.Public(),
	{Method: http.MethodGet, Path: "/api/v1/products/:id"}:    middleware.Public(),
	{Method: http.MethodPost, Path: "/api/v1/products"}:       middleware.Authenticated(auth.DefaultRole),
	{Method: http.MethodPut, Path: "/api/v1/products/:id"}:    middleware.Authenticated(auth.DefaultRole),
	{Method: http.MethodDelete, Path: "/api/v1/products/:id"}: middleware.Authenticated("admin"),
}

// RoutePolicies はproductサービスの全ルートの認証ポリシーの複製を返す。
// gatewayは転送前に同じポリシーを適用する。
func RoutePolicies() middleware.PolicyTable {
	return maps.Clone(routePolicies)
}

// Server はproductサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store は商品の永続化先。
	store *Store
	// validator はトークンを検証する。
	validator middleware.TokenValidator
	// logger はサービスのロガー。
	logger zerolog.Logger
}

// NewServer は新しいproductサーバーを生成する。
func NewServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL, migrationsFS, migrationsDir)
	if err != nil {
		return nil, err
	}

	s, err := newServer(db, cfg.Port, auth.NewValidator(cfg.JWTSecret), logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// newServer は接続済みのDBからサーバーを組み立てる。
func newServer(db *sql.DB, port string, validator middleware.TokenValidator, logger zerolog.Logger) (*Server, error) {
	s := &Server{
		router:    gin.New(),
		port:      port,
		db:        db,
		store:     NewStore(db),
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
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "product"})
	})

	products := s.router.Group("/api/v1/products")
	{
		// 商品一覧取得
		products.GET("", s.handleList())
		// 商品詳細取得
		products.GET("/:id", s.handleGet())
		// 商品作成
		products.POST("", s.handleCreate())
		// 商品更新
		products.PUT("/:id", s.handleUpdate())
		// 商品削除
		products.DELETE("/:id", s.handleDelete())
	}
}

// createProductRequest は商品作成リクエストのJSON構造。
type createProductRequest struct {
	// Name は商品名。
	Name string `json:"name" binding:"required"`
	// Description は商品説明。
	Description string `json:"description"`
	// Price は価格。
	Price *float64 `json:"price" binding:"required,gte=0"`
	// Stock は在庫数。
	Stock *int `json:"stock" binding:"omitempty,gte=0"`
	// Category はカテゴリ。
	Category string `json:"category"`
}

// updateProductRequest は商品更新リクエストのJSON構造。省略したフィールドは変更しない。
type updateProductRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0"`
	Stock       *int     `json:"stock" binding:"omitempty,gte=0"`
	Category    *string  `json:"category"`
}

// handleList は商品一覧取得を処理するハンドラを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := s.store.List(c.Request.Context(), c.Query("category"))
		if err != nil {
			s.internalError(c, err, "商品一覧の取得に失敗しました")
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

// handleGet は商品詳細取得を処理するハンドラを返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.store.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		}
		if err != nil {
			s.internalError(c, err, "商品の取得に失敗しました")
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// handleCreate は商品作成を処理するハンドラを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		in := NewProduct{
			Name:        req.Name,
			Description: req.Description,
			Price:       *req.Price,
			Category:    req.Category,
		}
		if req.Stock != nil {
			in.Stock = *req.Stock
		}

		p, err := s.store.Create(c.Request.Context(), in)
		if err != nil {
			s.internalError(c, err, "商品の作成に失敗しました")
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// handleUpdate は商品の部分更新を処理するハンドラを返す。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		p, err := s.store.Update(c.Request.Context(), c.Param("id"), Patch(req))
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		}
		if err != nil {
			s.internalError(c, err, "商品の更新に失敗しました")
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// handleDelete は商品削除を処理するハンドラを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.store.Delete(c.Request.Context(), c.Param("id"))
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "商品が見つかりません"})
			return
		}
		if err != nil {
			s.internalError(c, err, "商品の削除に失敗しました")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "商品を削除しました"})
	}
}

// internalError はエラーをログに出力して500を返す。
func (s *Server) internalError(c *gin.Context, err error, msg string) {
	zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
