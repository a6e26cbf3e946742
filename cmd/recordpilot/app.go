package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/recordpilot/internal/config"
	"github.com/HendryAvila/recordpilot/internal/conversation"
	"github.com/HendryAvila/recordpilot/internal/llm"
	"github.com/HendryAvila/recordpilot/internal/logging"
	"github.com/HendryAvila/recordpilot/internal/prompts"
	"github.com/HendryAvila/recordpilot/internal/records"
	rpserver "github.com/HendryAvila/recordpilot/internal/server"
)

// loadConfig reads the config named by the persistent flags.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath, envFiles...)
}

// newLogger builds the process logger. stderr keeps stdout free for the
// MCP stdio transport and the terminal chat.
func newLogger(cfg *config.Config, stderr bool) (*logging.Logger, error) {
	log, err := logging.New(logging.Options{
		Mode:     cfg.Logs.Mode,
		Level:    cfg.Logs.Level,
		Stderr:   stderr,
		HashSalt: cfg.Logs.HashSalt,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return log, nil
}

func backendOptions(cfg *config.Config, log *logging.Logger) rpserver.Options {
	return rpserver.Options{
		Store:      records.Config{DataDir: cfg.Store.DataDir, FileName: cfg.Store.FileName},
		SideLogDir: cfg.Store.SideLogDir,
		Owner:      cfg.Conversation.Owner,
		Log:        log,
	}
}

// newRedis returns nil when no Redis address is configured.
func newRedis(ctx context.Context, cfg *config.Config, log *logging.Logger) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", cfg.Redis.Addr, err)
	}
	log.Info("Redis connected", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
	return rdb, nil
}

// newManager builds the Gemini-backed agent and the conversation manager on
// top of b. A non-nil rdb serializes each conversation across replicas.
func newManager(ctx context.Context, cfg *config.Config, b *rpserver.Backend, rdb redis.UniversalClient, log *logging.Logger) (*conversation.Manager, error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}
	oracle, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLMTimeout(),
	})
	if err != nil {
		return nil, err
	}

	agent := conversation.NewAgent(oracle, b.Tools, b.Dispatcher, log, conversation.AgentConfig{
		MaxSteps: cfg.Conversation.MaxSteps,
		Window:   cfg.Conversation.Window,
	})

	opts := []conversation.Option{conversation.WithIdleTTL(cfg.IdleTTL())}
	if rdb != nil {
		opts = append(opts, conversation.WithLocker(
			conversation.NewRedisLocker(rdb, cfg.LockTTL(), cfg.LockWait(), log),
		))
	}
	return conversation.NewManager(agent, prompts.System(cfg.Conversation.Owner), opts...), nil
}
