package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"regexp"
	"time"
	"tqs/src/boot"
	"tqs/src/common"
	"tqs/src/config"
	"tqs/src/controllers"
	"tqs/src/db"
	"tqs/src/lib"
	"tqs/src/middlewares"
	"tqs/src/utils"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
	engineiotypes "github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io/v2/socket"
)

const (
	apiPrefix string = "/api/v1"
)

var salesDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	return err == nil
}

var gtfield validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	field := fl.Parent().FieldByName(fl.Param())
	fieldValue, ok := field.Interface().(string)
	if !ok {
		return false
	}
	fielddatetime, err := time.Parse(config.TIME_PARSE_FORMAT, fieldValue)
	if err != nil {
		return false
	}
	return datetime.After(fielddatetime)
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/healthz", func(ctx *gin.Context) {
		gdb := db.GetDb()
		sqldb, err := gdb.DB()
		if err == nil {
			err = sqldb.Ping()
		}
		if err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		if err := lib.GetRedisClient().Ping(context.Background()).Err(); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func guestAuthRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	guest := apiv1.Group("/auth")
	guest.
		POST("/login", func(ctx *gin.Context) {
			resp, status, err := controllers.AuthLogin(ctx)
			if err != nil {
				log.Printf("[AuthLogin] error: %s\n", err.Error())
				utils.AbortWithError(ctx, status, err.Error())
				return
			}
			ctx.JSON(status, gin.H{"data": resp})
		}).
		POST("/register", func(ctx *gin.Context) {
			resp, status, err := controllers.AuthRegister(ctx)
			if err != nil {
				log.Printf("[AuthRegister] error: %s\n", err.Error())
				utils.AbortWithError(ctx, status, err.Error())
				return
			}
			ctx.JSON(status, gin.H{"data": resp})
		})
	return guest
}

func setupSocketServer(r *gin.Engine) *socket.Server {
	c := socket.DefaultServerOptions()
	c.SetServeClient(true)
	// Queue pushes are advisory, so the transport favors tolerating slow
	// clients over detecting them quickly.
	c.SetPingInterval(5 * time.Second)
	c.SetPingTimeout(2 * time.Second)
	c.SetMaxHttpBufferSize(256_000)
	c.SetConnectTimeout(5 * time.Second)
	c.SetCors(&engineiotypes.Cors{
		Origin:      "*",
		Credentials: true,
	})

	wss := lib.GetSocketServer()

	r.GET("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	r.POST("/socket.io/*any", gin.WrapH(wss.ServeHandler(c)))
	return wss
}

func registerBackgroundJobs() {
	if _, err := lib.CreateCronJob(common.PromoteOpenEvents, config.PromoteInterval()); err != nil {
		log.Fatalf("Could not register promotion job: %s", err.Error())
	}
	if _, err := lib.CreateCronJob(common.ExpiredReservationsSweep, config.SweepInterval()); err != nil {
		log.Fatalf("Could not register expiration sweep: %s", err.Error())
	}
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	})
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	boot.InitDb()
	boot.InitScheduler()
	defer boot.StopScheduler()

	go boot.RecoverQueuedJobs()
	go boot.UpdateExpiredJobs()
	registerBackgroundJobs()

	router := setupRouter()
	wss := setupSocketServer(router)
	if wss != nil {
		log.Println("WS server listening for connections...")
	}

	appHost := os.Getenv("APP_HOST")
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("salesdate", salesDateValidatorFunc)
		v.RegisterValidation("gtdate", gtfield)
	}

	guestAuthRoutes(router)

	public := apiv1Group(router)
	eventHandlers(public)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		queueHandlers(authorized)
		reservationHandlers(authorized)
	}

	admin := router.Group(path.Join(apiPrefix, "admin"))
	admin.Use(middlewares.AuthMiddleware, middlewares.AdminMiddleware)
	{
		adminEventHandlers(admin)
	}

	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Failed to start server: %s", err)
	}
}
