package gateway

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/storefront/pkg/auth"
	"github.com/nao1215/storefront/pkg/config"
	"github.com/nao1215/storefront/pkg/httpclient"
	"github.com/nao1215/storefront/pkg/middleware"
)

// backend は転送先の内部サービス。
type backend string

const (
	backendUser    backend = "user"
	backendProduct backend = "product"
	backendOrder   backend = "order"
)

// proxyRoute はgatewayが公開して内部サービスへ転送するルート。
type proxyRoute struct {
	method  string
	path    string
	backend backend
	policy  middleware.Policy
}

// proxyRoutes は転送するルートの一覧。ポリシーは各内部サービスのものと揃える。
var proxyRoutes = []proxyRoute{
	{http.MethodPost, "/auth/register", backendUser, middleware.Public()},
	{http.MethodPost, "/auth/login", backendUser, middleware.Public()},
	{http.MethodGet, "/api/v1/users/me", backendUser, middleware.Authenticated()},

	{http.MethodGet, "/api/v1/products", backendProduct, middleware.Public()},
	{http.MethodGet, "/api/v1/products/:id", backendProduct, middleware.Public()},
	{http.MethodPost, "/api/v1/products", backendProduct, middleware.Authenticated(auth.DefaultRole)},
	{http.MethodPut, "/api/v1/products/:id", backendProduct, middleware.Authenticated(auth.DefaultRole)},
	{http.MethodDelete, "/api/v1/products/:id", backendProduct, middleware.Authenticated("admin")},

	{http.MethodPost, "/api/v1/orders", backendOrder, middleware.Authenticated()},
	{http.MethodGet, "/api/v1/orders", backendOrder, middleware.Authenticated()},
	{http.MethodGet, "/api/v1/orders/:id", backendOrder, middleware.Authenticated()},
	{http.MethodPut, "/api/v1/orders/:id/status", backendOrder, middleware.Authenticated("admin")},
}

// routePolicies はgatewayの全ルートの認証ポリシーを返す。
func routePolicies() middleware.PolicyTable {
	table := middleware.PolicyTable{
		{Method: http.MethodGet, Path: "/health"}:    middleware.Public(),
		{Method: http.MethodGet, Path: "/api/v1/me"}: middleware.Authenticated(),
	}
	for _, r := range proxyRoutes {
		table[middleware.RouteKey{Method: r.method, Path: r.path}] = r.policy
	}
	return table
}

// Server はAPI GatewayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// backends は内部サービスごとのHTTPクライアント。
	backends map[backend]*httpclient.Client
	// validator はトークンを検証する。
	validator middleware.TokenValidator
	// frontendURL はCORSで許可するオリジン。
	frontendURL string
	// logger はサービスのロガー。
	logger zerolog.Logger
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	backends := map[backend]*httpclient.Client{
		backendUser:    httpclient.New(cfg.UserServiceURL),
		backendProduct: httpclient.New(cfg.ProductServiceURL),
		backendOrder:   httpclient.New(cfg.OrderServiceURL),
	}
	return newServer(cfg.Port, backends, auth.NewValidator(cfg.JWTSecret), cfg.FrontendURL, logger)
}

// newServer は転送先のクライアントからサーバーを組み立てる。
func newServer(port string, backends map[backend]*httpclient.Client, validator middleware.TokenValidator, frontendURL string, logger zerolog.Logger) (*Server, error) {
	for _, r := range proxyRoutes {
		if _, ok := backends[r.backend]; !ok {
			return nil, fmt.Errorf("転送先が設定されていません: %s", r.backend)
		}
	}

	s := &Server{
		router:      gin.New(),
		port:        port,
		backends:    backends,
		validator:   validator,
		frontendURL: frontendURL,
		logger:      logger,
	}
	policies := routePolicies()
	s.setupRoutes(policies)

	if err := policies.Verify(s.router.Routes()); err != nil {
		return nil, err
	}
	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes(policies middleware.PolicyTable) {
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.CORS([]string{s.frontendURL}))
	s.router.Use(middleware.Guard(policies, s.validator))

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	// 認証済みIDの情報
	s.router.GET("/api/v1/me", s.handleGetCurrentUser())

	for _, r := range proxyRoutes {
		s.router.Handle(r.method, r.path, s.handleProxy(s.backends[r.backend]))
	}
}

// handleGetCurrentUser はトークンのクレームから認証済みIDの情報を返すハンドラを返す。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.RequireIdentity(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":    claims.Subject,
			"email": claims.Email,
			"roles": claims.Roles,
		})
	}
}

// handleProxy はリクエストを内部サービスへ転送するハンドラを返す。
// メソッド・パス・クエリ・ボディとContent-Type、Authorizationヘッダーを引き継ぎ、
// 内部サービスのステータスとボディをそのまま返す。
func (s *Server) handleProxy(client *httpclient.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := client.Forward(c.Request.Context(), c.Request.Method, c.Request.URL.RequestURI(), c.Request.Header, c.Request.Body)
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().
				Err(err).
				Str("upstream", client.BaseURL()).
				Msg("プロキシエラー")
			c.JSON(http.StatusBadGateway, gin.H{"error": "内部サービスとの通信に失敗しました"})
			return
		}
		defer resp.Body.Close()

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}
		c.DataFromReader(resp.StatusCode, resp.ContentLength, contentType, resp.Body, nil)
	}
}
