package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"notekeeper/cache"
	"notekeeper/db"
	"notekeeper/reminder"
	"notekeeper/tgbot"
	"notekeeper/timezone"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type config struct {
	TgToken   string `json:"TgToken"`
	DBConnStr string `json:"DBConnStr"`
	RedisAddr string `json:"RedisAddr"`
	RedisDB   int    `json:"RedisDB"`
}

// readConfig reads configuration from the given file
func readConfig(cfgFile string) (*config, error) {
	raw, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, err
	}

	var cfg config
	if err = json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "couldn't unmarshal configuration")
	}

	return &cfg, nil
}

// validateConfig makes sure that all required fields are present in the config
func validateConfig(cfg *config) error {
	missingFields := []string{}
	if cfg.TgToken == "" {
		missingFields = append(missingFields, "TgToken")
	}
	if cfg.DBConnStr == "" {
		missingFields = append(missingFields, "DBConnStr")
	}
	if cfg.RedisAddr == "" {
		missingFields = append(missingFields, "RedisAddr")
	}

	if len(missingFields) > 0 {
		return errors.Errorf("configuration is missing field(s): %s", strings.Join(missingFields, ", "))
	}

	return nil
}

func main() {
	logger, _ := zap.NewDevelopment(zap.Fields(zap.String("ns", "NoteKeeper")))
	log := logger.Sugar()
	defer logger.Sync()

	cfgFile, ok := os.LookupEnv("CONFIG_FILE")
	if !ok {
		log.Fatalf("Configuration file name isn't set")
	}

	cfg, err := readConfig(cfgFile)
	if err != nil {
		log.Fatalw("couldn't read configuration", "file", cfgFile, "err", err)
	}

	if err = validateConfig(cfg); err != nil {
		log.Fatal(err)
	}

	if err = timezone.Init(); err != nil {
		log.Errorw("failed loading display time zone; using UTC", "err", err)
	}

	ctx := context.Background()

	d, err := db.NewDatabase(ctx, cfg.DBConnStr)
	if err != nil {
		log.Fatalw("failed to initialize database", "err", err)
	}
	defer d.Close()

	if err = d.InitSchema(ctx); err != nil {
		log.Fatalw("failed to initialize schema", "err", err)
	}

	c := cache.NewRedis(cfg.RedisAddr, cfg.RedisDB)
	if err = c.Ping(ctx); err != nil {
		// listings still work, page turns will report "no data"
		log.Errorw("redis is unreachable", "err", err)
	}

	b, err := tgbot.NewTBot(cfg.TgToken, d, c, log)
	if err != nil {
		log.Fatalw("failed to initialize Telegram Bot", "err", err)
	}

	go reminder.NewScanner(d, b.SendReminder, log).Run(ctx)

	b.Run(ctx)
}
