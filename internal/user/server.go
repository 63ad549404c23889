package user

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

// routePolicies はuserサービスの全ルートの認証ポリシー。
var routePolicies = middleware.PolicyTable{
	{Method: http.MethodGet, Path: "/health"}:           middleware.Public(),
	{Method: http.MethodPost, Path: "/auth/register"}:   middleware.Public(),
	{Method: http.MethodPost, Path: "/auth/login"}:      middleware.Public(),
	{Method: http.MethodGet, Path: "/api/v1/users/me"}: middleware.Authenticated(),
}

// RoutePolicies はuserサービスの全ルートの認証ポリシーの複製を返す。
// gatewayは転送前に同じポリシーを適用する。
func RoutePolicies() middleware.PolicyTable {
	return maps.Clone(routePolicies)
}

// Server はuserサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store はユーザーの永続化先。
	store *Store
	// issuer はトークンを発行する。
	issuer *Issuer
	// validator はトークンを検証する。
	validator *auth.Validator
	// logger はサービスのロガー。
	logger zerolog.Logger
}

// NewServer は新しいuserサーバーを生成する。
// SQLiteデータベースへの接続とマイグレーションを行う。
func NewServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL, migrationsFS, migrationsDir)
	if err != nil {
		return nil, err
	}

	s, err := newServer(db, cfg.Port, cfg.JWTSecret, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// newServer は接続済みのDBからサーバーを組み立てる。
func newServer(db *sql.DB, port, secret string, logger zerolog.Logger, opts ...IssuerOption) (*Server, error) {
	store := NewStore(db)
	s := &Server{
		router:    gin.New(),
		port:      port,
		db:        db,
		store:     store,
		issuer:    NewIssuer(store, auth.NewHasher(), secret, opts...),
		validator: auth.NewValidator(secret),
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

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "user"})
	})

	authGroup := s.router.Group("/auth")
	{
		// ユーザー登録
		authGroup.POST("/register", s.handleRegister())
		// ログイン
		authGroup.POST("/login", s.handleLogin())
	}

	api := s.router.Group("/api/v1")
	{
		// 認証済みユーザーのプロフィール取得
		api.GET("/users/me", s.handleMe())
	}
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Name は表示名。
	Name string `json:"name" binding:"required"`
	// Password は平文のパスワード。
	Password string `json:"password" binding:"required,min=8"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Email はメールアドレス。
	Email string `json:"email" binding:"required,email"`
	// Password は平文のパスワード。
	Password string `json:"password" binding:"required"`
}

// handleRegister はユーザー登録を処理するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		result, err := s.issuer.Register(c.Request.Context(), req.Email, req.Name, req.Password)
		if err != nil {
			s.respondIssuerError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// handleLogin はログインを処理するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		result, err := s.issuer.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			s.respondIssuerError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// handleMe は認証済みユーザーのプロフィールを返すハンドラを返す。
func (s *Server) handleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.RequireIdentity(c)
		if !ok {
			return
		}

		u, err := s.store.FindByID(c.Request.Context(), claims.Subject)
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("ユーザー取得エラー")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"id":         u.ID,
			"email":      u.Email,
			"name":       u.Name,
			"roles":      u.Roles,
			"created_at": u.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
}

// respondIssuerError はIssuerのエラーをHTTPレスポンスに変換する。
func (s *Server) respondIssuerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrIdentityExists), errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("認証処理エラー")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部サーバーエラーが発生しました"})
	}
}
