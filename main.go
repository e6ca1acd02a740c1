package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"jerkyClubAPI/handlers"
	"jerkyClubAPI/internal/database"
	"jerkyClubAPI/internal/notification"
	"jerkyClubAPI/middleware"
	"jerkyClubAPI/services"

	_ "net/http/pprof"
)

var (
	pools                 *database.Pools
	cacheService          *services.CacheService
	userService           *services.UserService
	metricsService        *services.MetricsService
	scoreService          *services.ScoreService
	streakService         *services.StreakService
	achievementService    *services.AchievementService
	classificationService *services.ClassificationService
	activityService       *services.ActivityService
	rankingService        *services.RankingService
	progressService       *services.ProgressService
	leaderboardService    *services.LeaderboardService
	warmerService         *services.WarmerService
	fcmService            *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	pools, err = database.Connect(ctx, dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	log.Println("Successfully connected to Postgres")

	cacheService = services.NewCacheService()
	userService = services.NewUserService(pools.Interactive, cacheService)
	metricsService = services.NewMetricsService(pools.Background)
	scoreService = services.NewScoreService(pools.Background, cacheService)
	streakService = services.NewStreakService(pools.Interactive)
	achievementService = services.NewAchievementService(pools.Background, scoreService, cacheService, userService)
	classificationService = services.NewClassificationService(metricsService, scoreService, achievementService, cacheService)
	activityService = services.NewActivityService(pools.Interactive, classificationService)
	rankingService = services.NewRankingService(pools.Interactive, scoreService, streakService, activityService)
	progressService = services.NewProgressService(metricsService, achievementService)
	leaderboardService = services.NewLeaderboardService(pools.Interactive, cacheService)
	warmerService = services.NewWarmerService(pools.Interactive, leaderboardService)

	// Awards loop back into the ingest path as coin_earned events.
	achievementService.SetCoinRecorder(activityService)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		userService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pools...")
		pools.Close()
	}()

	classificationService.Start(envWorkers())

	// Bucket resets run on the UTC clock: weekly Monday midnight, monthly on
	// the first.
	scheduler := cron.New(cron.WithLocation(time.UTC))
	scheduler.AddFunc("0 0 * * 1", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := scoreService.ResetWeekly(ctx); err != nil {
			log.Printf("Weekly reset failed: %v", err)
		}
	})
	scheduler.AddFunc("0 0 1 * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := scoreService.ResetMonthly(ctx); err != nil {
			log.Printf("Monthly reset failed: %v", err)
		}
	})
	scheduler.Start()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		isColdStart, err := warmerService.WaitForStoreReady(ctx, 10, 2*time.Second, time.Minute)
		if err != nil {
			log.Printf("Warning: store readiness check failed: %v", err)
			return
		}
		warmerService.WarmAll(ctx, isColdStart)
	}()

	engagementHandler := handlers.NewEngagementHandler(activityService, streakService, metricsService, scoreService)
	rankingHandler := handlers.NewRankingHandler(rankingService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	achievementHandler := handlers.NewAchievementHandler(metricsService, achievementService, progressService)
	userHandler := handlers.NewUserHandler(userService)
	webhookHandler := handlers.NewWebhookHandler(userService, activityService)

	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pools.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "jerkyClub-api"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	standardRouter.HandleFunc("/webhooks/orders", webhookHandler.HandleOrderWebhook).Methods("POST")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware(userService.ResolveClerkID))

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/public-profile", userHandler.GetPublicProfile).Methods("GET")
	protected.HandleFunc("/user/register-device", userHandler.RegisterDevice).Methods("POST")

	protected.HandleFunc("/activity", engagementHandler.TrackActivity).Methods("POST")
	protected.HandleFunc("/activity/login", engagementHandler.RecordLogin).Methods("POST")
	protected.HandleFunc("/user/stats", engagementHandler.GetStats).Methods("GET")
	protected.HandleFunc("/user/score", engagementHandler.GetScore).Methods("GET")

	protected.HandleFunc("/rankings", rankingHandler.GetList).Methods("GET")
	protected.HandleFunc("/rankings", rankingHandler.SaveRanking).Methods("POST")
	protected.HandleFunc("/rankings", rankingHandler.DeleteRanking).Methods("DELETE")

	protected.HandleFunc("/leaderboard", leaderboardHandler.GetLeaderboard).Methods("GET")
	protected.HandleFunc("/leaderboard/position", leaderboardHandler.GetPosition).Methods("GET")

	protected.HandleFunc("/achievements", achievementHandler.GetAchievements).Methods("GET")
	protected.HandleFunc("/achievements/closest", achievementHandler.GetClosest).Methods("GET")
	protected.HandleFunc("/admin/achievements/clear-user", achievementHandler.ClearUserAchievements).Methods("POST")
	protected.HandleFunc("/admin/achievements/clear-all", achievementHandler.ClearAllAchievements).Methods("POST")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	scheduler.Stop()
	classificationService.Stop(10 * time.Second)

	// Final flush so nothing queued in memory is lost.
	if err := activityService.Close(shutdownCtx); err != nil {
		log.Printf("Final activity flush failed: %v", err)
	}

	log.Println("Server shutdown complete")
}

func envWorkers() int {
	raw := os.Getenv("CLASSIFICATION_WORKERS")
	if raw == "" {
		return 4
	}
	workers, err := strconv.Atoi(raw)
	if err != nil || workers <= 0 {
		return 4
	}
	return workers
}
