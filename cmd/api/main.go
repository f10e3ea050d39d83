package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mounthank/go-imagegen/internal/archive"
	"github.com/mounthank/go-imagegen/internal/auth"
	"github.com/mounthank/go-imagegen/internal/generation"
	"github.com/mounthank/go-imagegen/internal/handlers"
	"github.com/mounthank/go-imagegen/internal/provider"
	"github.com/mounthank/go-imagegen/internal/store"
	"github.com/mounthank/go-imagegen/models"
)

func main() {
	// Initialize environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file loaded:", err)
	}

	// Chi
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// OAUTH
	goth.UseProviders(google.New(os.Getenv("GOOGLE_KEY"), os.Getenv("GOOGLE_SECRET"), "http://localhost:3000/auth/google/callback"))

	// Session store
	key := os.Getenv("SESSION_SECRET_KEY")
	maxAge := 86400 * 30
	isProd := false
	cookieStore := sessions.NewCookieStore([]byte(key))
	cookieStore.MaxAge(maxAge)
	cookieStore.Options.Path = "/"
	cookieStore.Options.HttpOnly = true
	cookieStore.Options.Secure = isProd
	gothic.Store = cookieStore

	// Database connection
	dsn := os.Getenv("DSN")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate models
	if err := db.AutoMigrate(models.User{}, models.SavedImage{}); err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}

	// Inference provider client. A missing token is tolerated here: the
	// provider rejects the calls and that surfaces as a generation error.
	token := os.Getenv("REPLICATE_API_TOKEN")
	if token == "" {
		log.Println("REPLICATE_API_TOKEN is not set; image generation will fail until it is")
	}
	runner := provider.New(token)
	svc := generation.NewService(runner)

	st := store.New(db)
	saver := store.NewHistory(st, newArchiver())

	gateway := auth.NewGateway(db, cookieStore)
	hub := handlers.NewSessionHub(svc, saver, gateway, cookieStore)

	// User auth
	r.Get("/auth/{provider}/callback", gateway.HandleCallback)
	r.Post("/logout/{provider}", gateway.SignOut)
	r.Post("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
		if err := gateway.SignIn(w, r); err != nil {
			log.Println("sign-in failed:", err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.Limit(
			20,
			1*time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		))
		r.Get("/models", handlers.ListModels)
		r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
			handlers.Generate(w, r, svc)
		})
		r.Post("/session/generate", hub.SubmitGeneration)
		r.Get("/session/state", hub.SessionState)

		// Routes below require a signed-in user
		r.Group(func(r chi.Router) {
			r.Use(gateway.RequireUser)
			r.Get("/images", func(w http.ResponseWriter, r *http.Request) {
				handlers.ListImages(w, r, st)
			})
			r.Get("/user", func(w http.ResponseWriter, r *http.Request) {
				handlers.GetUser(w, r, db)
			})
		})
	})

	srv := &http.Server{Addr: ":3000", Handler: r}
	go func() {
		log.Println("Starting API server on :3000")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Println("Shutdown error:", err)
	}
	// Give fire-and-forget history writes a chance to land.
	hub.Drain()
}

// newArchiver wires the R2 client when credentials are present; without
// them archival is simply disabled and history records keep provider URLs.
func newArchiver() store.Archiver {
	accountID := os.Getenv("ACCOUNT_ID")
	accessKeyID := os.Getenv("ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("ACCESS_KEY_SECRET")
	bucket := os.Getenv("BUCKET_NAME")
	publicURL := os.Getenv("PUBLIC_URL")
	if accountID == "" || accessKeyID == "" || accessKeySecret == "" || bucket == "" || publicURL == "" {
		log.Println("R2 credentials not set; image archival disabled")
		return nil
	}

	// Create custom HTTP client with TLS config
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			},
		},
	}
	httpClient := &http.Client{Transport: tr}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithHTTPClient(httpClient),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, accessKeySecret, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		log.Println("Failed to configure R2 client; archival disabled:", err)
		return nil
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID))
	})

	return archive.New(client, bucket, publicURL)
}
