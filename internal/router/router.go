package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	appointmenthandler "github.com/medibook/booking-api/internal/handler/appointment"
	availabilityhandler "github.com/medibook/booking-api/internal/handler/availability"
	healthhandler "github.com/medibook/booking-api/internal/handler/health"
	"github.com/medibook/booking-api/internal/middleware"
)

type Router struct {
	engine        *gin.Engine
	auth          *middleware.AuthMiddleware
	availabilityH *availabilityhandler.Handler
	appointmentH  *appointmenthandler.Handler
	healthH       *healthhandler.Handler
	rateLimiter   *middleware.RateLimiter
	metrics       *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type Config struct {
	RateLimit        rate.Limit
	RateBurst        int
	ReservationRate  rate.Limit
	ReservationBurst int
	CORSConfig       middleware.CORSConfig
	MetricsPrefix    string
	Timeout          time.Duration
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	availabilityH *availabilityhandler.Handler,
	appointmentH *appointmenthandler.Handler,
	healthH *healthhandler.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MetricsPrefix == "" {
		config.MetricsPrefix = "booking_api"
	}

	r := &Router{
		engine:        engine,
		auth:          auth,
		availabilityH: availabilityH,
		appointmentH:  appointmentH,
		healthH:       healthH,
		metrics:       initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.Timeout}),
	)

	engine.Use(middleware.CORS(config.CORSConfig))

	if config.RateLimit > 0 {
		r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:             config.RateLimit,
			Burst:            config.RateBurst,
			ReservationRate:  config.ReservationRate,
			ReservationBurst: config.ReservationBurst,
		})
		engine.Use(r.rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)

	// Slot preview is public: patients browse availability before they
	// sign in.
	api.GET("/providers/:id/slots", r.availabilityH.GetSlots)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.setupAppointmentRoutes(protected)
}

func (r *Router) setupAppointmentRoutes(rg *gin.RouterGroup) {
	// The slot-taking endpoints get the tighter reservation bucket on
	// top of the API-wide limiter.
	reserveLimit := func(c *gin.Context) { c.Next() }
	if r.rateLimiter != nil {
		reserveLimit = r.rateLimiter.ReservationRateLimit()
	}

	appointments := rg.Group("/appointments")
	{
		appointments.POST("", reserveLimit, r.appointmentH.CreateAppointment)
		appointments.GET("", r.appointmentH.ListAppointments)
		appointments.GET("/:id", r.appointmentH.GetAppointment)
		appointments.POST("/:id/payment/order", r.appointmentH.CreatePaymentOrder)
		appointments.POST("/:id/payment/verify", r.appointmentH.VerifyPayment)
		appointments.POST("/:id/payment/abandon", r.appointmentH.AbandonPayment)
		appointments.DELETE("/:id", r.appointmentH.CancelAppointment)
		appointments.PATCH("/:id/reschedule", reserveLimit, r.appointmentH.RescheduleAppointment)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()

		c.Next()

		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
