package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/bitekeeper/recipebox/internal/cache"
	"github.com/bitekeeper/recipebox/internal/config"
	"github.com/bitekeeper/recipebox/internal/http/handlers"
	"github.com/bitekeeper/recipebox/internal/http/middlewares"
	"github.com/bitekeeper/recipebox/internal/observability"
	"github.com/bitekeeper/recipebox/internal/repo/postgres"
	"github.com/bitekeeper/recipebox/internal/service"
	"github.com/bitekeeper/recipebox/internal/storage"
	"github.com/bitekeeper/recipebox/internal/tokens"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config, images storage.ImageStore) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	// outer bound sized for image uploads; JSON routes tighten it below
	r.Use(middlewares.MaxBodyBytes(cfg.MaxUploadBytes))
	r.Use(otelgin.Middleware("recipebox-api"))

	// own registry per router so tests can build engines freely
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	r.Use(prom.GinHandleMiddleware())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	// docs
	r.GET("/docs", handlers.SwaggerUI)
	r.StaticFile("/docs/openapi.yaml", "./docs/openapi.yaml")

	// uploaded images are served straight off disk with the fs backend
	if cfg.MediaBackend == "fs" {
		r.Static("/media", cfg.MediaRoot)
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	authTokensRepo := postgres.NewAuthTokensRepo(pool, prom)
	tagsRepo := postgres.NewTagsRepo(pool, prom)
	ingredientsRepo := postgres.NewIngredientsRepo(pool, prom)
	recipesRepo := postgres.NewRecipesRepo(pool, prom, tagsRepo, ingredientsRepo)

	// token manager with an optional Redis read-through cache
	var tokenCache tokens.Cache

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		tokenCache = tokens.NewRedisCache(rdb)
	}

	tokenManager := tokens.NewManager(
		cfg.TokenSecret,
		time.Duration(cfg.TokenTTLHours)*time.Hour,
		authTokensRepo,
		tokenCache,
		time.Duration(cfg.TokenCacheTTLSeconds)*time.Second,
	)

	usersService := service.NewUsers(usersRepo)

	// short lived in-process cache for listing pages
	listCache := cache.New(30 * time.Second)

	// wire up handlers
	usersHandler := handlers.NewUsersHandler(usersService, tokenManager)
	recipesHandler := handlers.NewRecipesHandlerWithCache(recipesRepo, images, listCache)
	tagsHandler := handlers.NewTagsHandlerWithCache(tagsRepo, listCache)
	ingredientsHandler := handlers.NewIngredientsHandlerWithCache(ingredientsRepo, listCache)
	adminUsersHandler := handlers.NewAdminUsersHandler(usersRepo, tokenManager)

	authMw := middlewares.NewAuthMiddleware(tokenManager)

	// brute force shield on the public account endpoints
	limiter := middlewares.NewRateLimiter(20, time.Minute)

	api := r.Group("/api")

	// public account endpoints
	public := api.Group("/users")
	public.Use(middlewares.RequireJSON())
	public.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	public.POST("", limiter.RateLimiterMiddleware(middlewares.KeyByIP), usersHandler.Create)
	public.POST("/token", limiter.RateLimiterMiddleware(middlewares.KeyByIP), usersHandler.ObtainToken)

	// everything below needs a valid token
	authed := api.Group("")
	authed.Use(authMw.RequireAuth())

	// multipart, so it skips the JSON guards
	authed.POST("/recipes/:id/image", recipesHandler.UploadImage)

	jsonAPI := authed.Group("")
	jsonAPI.Use(middlewares.RequireJSON())
	jsonAPI.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))

	jsonAPI.GET("/users/me", usersHandler.Me)
	jsonAPI.PUT("/users/me", usersHandler.UpdateMe)
	jsonAPI.PATCH("/users/me", usersHandler.PatchMe)
	jsonAPI.DELETE("/users/token", usersHandler.RevokeToken)

	jsonAPI.POST("/recipes", recipesHandler.CreateRecipe)
	jsonAPI.GET("/recipes", recipesHandler.ListRecipes)
	jsonAPI.GET("/recipes/:id", recipesHandler.GetRecipeByID)
	jsonAPI.PUT("/recipes/:id", recipesHandler.UpdateRecipe)
	jsonAPI.PATCH("/recipes/:id", recipesHandler.PatchRecipe)
	jsonAPI.DELETE("/recipes/:id", recipesHandler.DeleteRecipe)

	jsonAPI.GET("/tags", tagsHandler.List)
	jsonAPI.PUT("/tags/:id", tagsHandler.Update)
	jsonAPI.PATCH("/tags/:id", tagsHandler.Update)
	jsonAPI.DELETE("/tags/:id", tagsHandler.Delete)

	jsonAPI.GET("/ingredients", ingredientsHandler.List)
	jsonAPI.PUT("/ingredients/:id", ingredientsHandler.Update)
	jsonAPI.PATCH("/ingredients/:id", ingredientsHandler.Update)
	jsonAPI.DELETE("/ingredients/:id", ingredientsHandler.Delete)

	// staff only surface
	admin := jsonAPI.Group("/admin")
	admin.Use(authMw.RequireStaff())
	admin.GET("/users", adminUsersHandler.ListUsers)
	admin.GET("/users/:id", adminUsersHandler.GetUserByID)
	admin.PATCH("/users/:id", adminUsersHandler.PatchUser)
	admin.DELETE("/users/:id", adminUsersHandler.DeleteUser)

	log.Info("router ready",
		"mediaBackend", cfg.MediaBackend,
		"redisTokenCache", cfg.RedisAddr != "",
	)

	return r
}
