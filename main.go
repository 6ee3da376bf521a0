package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/korjavin/newsdigestbot/ai"
	"github.com/korjavin/newsdigestbot/api"
	"github.com/korjavin/newsdigestbot/bot"
	"github.com/korjavin/newsdigestbot/cache"
	"github.com/korjavin/newsdigestbot/channel"
	"github.com/korjavin/newsdigestbot/config"
	"github.com/korjavin/newsdigestbot/database"
	"github.com/korjavin/newsdigestbot/enrich"
	"github.com/korjavin/newsdigestbot/extractor"
	"github.com/korjavin/newsdigestbot/logger"
	"github.com/korjavin/newsdigestbot/pipeline"
	"github.com/korjavin/newsdigestbot/publisher"
	"github.com/korjavin/newsdigestbot/recorder"
	"github.com/korjavin/newsdigestbot/scoring"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.SugaredLogger.Desugar()}
		}),

		fx.Provide(
			config.Load,
			newLogger,
			newBotAPI,
		),

		// Storage
		fx.Provide(
			newDatabase,
			newResponseStore,
			func(db *database.DB) database.PostStore { return db },
			func(db *database.DB) database.PronunciationStore { return db },
			newCache,
		),

		// Collaborators
		fx.Provide(
			newGenerator,
			newNarrator,
			func(cfg *config.Config, log *logger.Logger) ai.Judge { return ai.NewHTTPJudge(cfg.JudgeURL, log) },
			channel.NewTelegram,
		),

		// Services
		fx.Provide(
			newExtractor,
			newEnricher,
			newPublisher,
			recorder.New,
			newScoring,
			func(ext *extractor.Extractor, enr *enrich.Enricher, pub *publisher.Publisher, log *logger.Logger) *pipeline.Pipeline {
				return pipeline.New(ext, enr, pub, log)
			},
			newBot,
			newRouter,
		),

		fx.Invoke(registerBot, registerServer),
	)

	app.Run()
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Starting NewsDigestBot...")
	return log, nil
}

func newBotAPI(cfg *config.Config, log *logger.Logger) (*tgbotapi.BotAPI, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	log.Info("Authorized on account", "bot", botAPI.Self.UserName)
	return botAPI, nil
}

func newDatabase(lc fx.Lifecycle, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return db.Close() }})
	return db, nil
}

// newResponseStore picks the answer log backend; posts and pronunciation
// attempts always live in SQLite.
func newResponseStore(cfg *config.Config, db *database.DB) (database.ResponseStore, error) {
	if cfg.StoreDriver == config.StoreJSONL {
		rl, err := database.NewResponseLog(cfg.ResponsesLogPath)
		if err != nil {
			return nil, fmt.Errorf("open response log: %w", err)
		}
		return rl, nil
	}
	return db, nil
}

func newCache(lc fx.Lifecycle, cfg *config.Config, log *logger.Logger) (cache.Store, error) {
	if !cfg.ExtractCacheEnabled {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), nil
	}
	rc, err := cache.NewRedis(cfg.RedisAddr, "newsdigest:", log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return rc.Close() }})
	return rc, nil
}

func newGenerator(cfg *config.Config, log *logger.Logger) (ai.Generator, error) {
	if cfg.Generator == config.GeneratorGemini {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		gc, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			return nil, err
		}
		return gc, nil
	}
	return ai.NewDeepseekClient(cfg.DeepseekAPIKey, cfg.DeepseekURL, cfg.DeepseekModel, log), nil
}

func newNarrator(cfg *config.Config, log *logger.Logger) ai.Narrator {
	if cfg.TTSAPIKey == "" {
		log.Warn("TTS_API_KEY not set, narration disabled")
		return nil
	}
	return ai.NewSpeechClient(cfg.TTSAPIKey, cfg.TTSURL, cfg.TTSModel, cfg.TTSVoice, log)
}

func newExtractor(cfg *config.Config, gen ai.Generator, store cache.Store, log *logger.Logger) *extractor.Extractor {
	var opts []extractor.Option
	if store != nil {
		opts = append(opts, extractor.WithCache(store, cfg.ExtractCacheTTL))
	}
	return extractor.New(gen, log, opts...)
}

func newEnricher(cfg *config.Config, gen ai.Generator, narrator ai.Narrator, log *logger.Logger) *enrich.Enricher {
	return enrich.New(gen, narrator, enrich.Config{
		AudioDir:        cfg.AudioDir,
		AudioPublicPath: cfg.AudioPublicPath,
		Voice:           cfg.TTSVoice,
		Concurrency:     cfg.EnrichConcurrency,
	}, log)
}

func newPublisher(cfg *config.Config, tg *channel.Telegram, posts database.PostStore, log *logger.Logger) *publisher.Publisher {
	return publisher.New(tg, posts, publisher.Config{AudioDir: cfg.AudioDir}, log)
}

func newScoring(cfg *config.Config, responses database.ResponseStore, pron database.PronunciationStore, tg *channel.Telegram, log *logger.Logger) *scoring.Engine {
	return scoring.New(responses, pron, tg, cfg.Location(), log)
}

type botParams struct {
	fx.In

	API           *tgbotapi.BotAPI
	Config        *config.Config
	Channel       *channel.Telegram
	Pipeline      *pipeline.Pipeline
	Recorder      *recorder.Recorder
	Scoring       *scoring.Engine
	Posts         database.PostStore
	Pronunciation database.PronunciationStore
	Judge         ai.Judge
	Log           *logger.Logger
}

func newBot(p botParams) (*bot.Bot, error) {
	return bot.New(p.API, p.Config, bot.Deps{
		Channel:       p.Channel,
		Pipeline:      p.Pipeline,
		Recorder:      p.Recorder,
		Scoring:       p.Scoring,
		Posts:         p.Posts,
		Pronunciation: p.Pronunciation,
		Judge:         p.Judge,
	}, p.Log)
}

type routerParams struct {
	fx.In

	Config    *config.Config
	Extractor *extractor.Extractor
	Pipeline  *pipeline.Pipeline
	Recorder  *recorder.Recorder
	Posts     database.PostStore
	Scoring   *scoring.Engine
	Log       *logger.Logger
}

func newRouter(p routerParams) (*gin.Engine, error) {
	mode, err := pipeline.ParseMode(p.Config.PublishMode)
	if err != nil {
		return nil, fmt.Errorf("PUBLISH_MODE: %w", err)
	}
	if !strings.EqualFold(p.Config.LogMode, "development") {
		gin.SetMode(gin.ReleaseMode)
	}
	h := api.NewHandler(api.Deps{
		Extractor: p.Extractor,
		Pipeline:  p.Pipeline,
		Recorder:  p.Recorder,
		Posts:     p.Posts,
		Reports:   p.Scoring,
	}, api.Config{
		DefaultChannel: p.Config.TargetChatID,
		DefaultMode:    mode,
		Token:          p.Config.APIToken,
	}, p.Log)

	router := api.NewRouter(h, p.Log)
	// Narration is referenced by path when AUDIO_PUBLIC_PATH is not a URL.
	if strings.HasPrefix(p.Config.AudioPublicPath, "/") {
		if err := os.MkdirAll(p.Config.AudioDir, 0o755); err != nil {
			return nil, fmt.Errorf("create audio dir: %w", err)
		}
		router.Static(p.Config.AudioPublicPath, p.Config.AudioDir)
	}
	return router, nil
}

func registerBot(lc fx.Lifecycle, b *bot.Bot, log *logger.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				b.Start(ctx)
			}()
			log.Info("Bot started")
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			b.Stop()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			log.Info("Bot stopped")
			return nil
		},
	})
}

func registerServer(lc fx.Lifecycle, router *gin.Engine, cfg *config.Config, log *logger.Logger) {
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("HTTP server starting", "port", cfg.ServerPort)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("HTTP server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("HTTP server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}
