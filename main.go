package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/davrell/trekbackend/auth"
	"github.com/davrell/trekbackend/config"
	"github.com/davrell/trekbackend/controllers"
	"github.com/davrell/trekbackend/database"
	"github.com/davrell/trekbackend/middleware"
	"github.com/davrell/trekbackend/models"
	"github.com/davrell/trekbackend/notify"
	"github.com/davrell/trekbackend/repository"
	"github.com/davrell/trekbackend/storage"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.MongoURI, cfg.DatabaseName)
	if err != nil {
		log.Error("mongodb connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Disconnect(ctx)
	log.Info("connected to mongodb", "database", cfg.DatabaseName)

	hasher := auth.NewHasher(cfg.BcryptCost, cfg.HashWorkers)
	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL)
	notifier := notify.NewLogNotifier(log)

	users := repository.NewUsers(db.Collection("users"))
	tours := repository.NewCollection[models.Tour](db.Collection("tours"))
	reviews := repository.NewReviews(db.Collection("reviews"), db.Collection("tours"))

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		hash, err := hasher.Hash(ctx, cfg.AdminPassword)
		if err != nil {
			log.Error("hash admin password", "error", err)
			os.Exit(1)
		}
		if err := users.EnsureAdmin(ctx, cfg.AdminEmail, hash); err != nil {
			log.Error("seed admin user", "error", err)
			os.Exit(1)
		}
	}

	var photos *storage.PhotoStore
	if cfg.GCSBucket != "" {
		photos, err = storage.NewPhotoStore(ctx, cfg.GCSBucket, cfg.CredentialsFile)
		if err != nil {
			log.Error("photo storage unavailable", "error", err)
			os.Exit(1)
		}
		defer photos.Close()
	}

	authCtl := &controllers.Auth{Users: users, Hasher: hasher, Tokens: tokens, Notifier: notifier, Cfg: cfg}
	usersCtl := &controllers.Users{Store: users, Photos: photos}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[origin] = true
	}
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return allowed[origin] },
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	protect := middleware.Protect(tokens, users)
	optional := middleware.Optional(tokens, users)

	api := r.Group("/api/v1")

	u := api.Group("/users")
	{
		u.POST("/signup", authCtl.Signup())
		u.POST("/login", authCtl.Login())
		u.GET("/logout", authCtl.Logout())
		u.POST("/forgotPassword", authCtl.ForgotPassword())
		u.PATCH("/resetPassword/:token", authCtl.ResetPassword())

		me := u.Group("", protect)
		{
			me.PATCH("/updateMyPassword", authCtl.UpdateMyPassword())
			me.GET("/me", usersCtl.GetMe())
			me.PATCH("/updateMe", usersCtl.UpdateMe())
			me.DELETE("/deleteMe", usersCtl.DeleteMe())
		}

		admin := u.Group("", protect, middleware.RestrictTo(models.RoleAdmin))
		{
			admin.GET("", controllers.GetAll[models.User](users, nil))
			admin.GET("/:id", controllers.GetOne[models.User](users))
			admin.PATCH("/:id", controllers.UpdateOne[models.User](users, controllers.AdminUpdateUserPatch))
			admin.DELETE("/:id", controllers.DeleteOne[models.User](users))
		}
	}

	t := api.Group("/tours")
	{
		t.GET("", optional, controllers.GetAll[models.Tour](tours, nil))
		t.GET("/:id", optional, controllers.GetOne[models.Tour](tours))

		manage := t.Group("", protect, middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide))
		{
			manage.POST("", controllers.CreateOne[models.Tour](tours, controllers.BuildTour))
			manage.PATCH("/:id", controllers.UpdateOne[models.Tour](tours, controllers.BuildTourPatch))
			manage.DELETE("/:id", controllers.DeleteOne[models.Tour](tours))
		}

		nested := t.Group("/:id/reviews", protect)
		{
			nested.GET("", controllers.GetAll[models.Review](reviews, controllers.TourScope))
			nested.POST("", middleware.RestrictTo(models.RoleUser), controllers.CreateOne[models.Review](reviews, controllers.BuildReview))
		}
	}

	rv := api.Group("/reviews", protect)
	{
		rv.GET("", controllers.GetAll[models.Review](reviews, nil))
		rv.GET("/:id", controllers.GetOne[models.Review](reviews))
		rv.POST("", middleware.RestrictTo(models.RoleUser), controllers.CreateOne[models.Review](reviews, controllers.BuildReview))
		rv.PATCH("/:id", middleware.RestrictTo(models.RoleUser, models.RoleAdmin), controllers.UpdateOne[models.Review](reviews, controllers.BuildReviewPatch))
		rv.DELETE("/:id", middleware.RestrictTo(models.RoleUser, models.RoleAdmin), controllers.DeleteOne[models.Review](reviews))
	}

	log.Info("listening", "port", cfg.Port, "env", cfg.Env)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
