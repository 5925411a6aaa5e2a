package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"

	"shop-analytics/internal/auth"
	"shop-analytics/internal/config"
	"shop-analytics/internal/httpx"
	ikafka "shop-analytics/internal/kafka"
	"shop-analytics/internal/model"
	"shop-analytics/internal/util"
)

const (
	apiKeyHeader    = "X-SA-API-Key"
	signatureHeader = "X-SA-Signature"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("starting collector on %s", cfg.CollectorAddr)
	writer := ikafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicBehavior)
	defer writer.Close()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpx.NewHTTPMetrics("collector").Handler())
	router.Use(httpx.CORSMiddleware(cfg.CORSAllowOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/v1/track", func(c *gin.Context) {
		handleTrack(c, cfg, writer)
	})

	server := &http.Server{
		Addr:    cfg.CollectorAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("collector server failed: %v", err)
		}
	}()

	graceful(server)
}

func handleTrack(c *gin.Context, cfg config.Config, writer *kafkago.Writer) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	var evt model.Event
	if err := json.Unmarshal(body, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if evt.ShopID == "" || evt.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shopId and action are required"})
		return
	}
	shopCred, ok := cfg.Shops[evt.ShopID]
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown shop"})
		return
	}
	apiKey := c.GetHeader(apiKeyHeader)
	if apiKey == "" || apiKey != shopCred.APIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid api key"})
		return
	}
	secret := shopCred.HMACSecret
	if secret == "" {
		secret = cfg.HMACSecret
	}
	if secret != "" {
		sig := c.GetHeader(signatureHeader)
		if sig == "" || !auth.VerifySignature(secret, body, sig) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	ua := c.GetHeader("User-Agent")
	if util.IsBot(ua, cfg.BotUserAgents) {
		c.JSON(http.StatusAccepted, gin.H{"status": "ignored"})
		return
	}

	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.TS == 0 {
		evt.TS = time.Now().UnixMilli()
	}
	if len(evt.Device) == 0 {
		evt.Device = deviceFromUA(ua)
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("marshal event: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode event"})
		return
	}

	key := evt.UserID
	if key == "" {
		key = evt.ShopID
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		log.Printf("write kafka: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "eventId": evt.EventID})
}

// deviceFromUA builds the raw device payload the aggregator later renders
// as "{os} {browser}". Empty when nothing could be inferred.
func deviceFromUA(ua string) json.RawMessage {
	osName := util.ParseOS(ua)
	browser := util.ParseBrowser(ua)
	if osName == "" && browser == "" {
		return nil
	}
	payload, err := json.Marshal(map[string]string{"os": osName, "browser": browser})
	if err != nil {
		return nil
	}
	return payload
}

func graceful(server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("shutting down collector...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
