// Package ctl wires the device, persistence and lighting services into
// the controller behind the aulactl command line.
package ctl

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openaula/aulactl/internal/configsvc"
	"github.com/openaula/aulactl/internal/hidsvc"
	"github.com/openaula/aulactl/internal/lightsvc"
	"github.com/openaula/aulactl/internal/profilesvc"
)

type Config struct {
	DataDir     string
	PresetsFile string

	// Fast skips the config read phase (the factory template stands in)
	// and disables per-fragment echo waits and settle pauses.
	Fast bool
	// PreferPage selects a specific vendor usage page when the keyboard
	// exposes more than one.
	PreferPage uint16
	// Debug raises the log level.
	Debug bool
}

type Controller struct {
	config Config
	log    *zap.Logger

	db         *badger.DB
	configSvc  *configsvc.Service
	hidSvc     *hidsvc.Service
	profileSvc *profilesvc.Service
}

func NewController(config Config) (*Controller, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !config.Debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dbOptions := badger.DefaultOptions(filepath.Join(config.DataDir, "db"))
	dbOptions.Logger = &badgerLogger{l: logger.Named("badger")}
	db, err := badger.Open(dbOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	hidSvc := hidsvc.New(logger.Named("hid"))
	if err := hidSvc.Init(); err != nil {
		db.Close()
		return nil, err
	}

	return &Controller{
		config:     config,
		log:        logger,
		db:         db,
		configSvc:  configsvc.New(logger.Named("config")),
		hidSvc:     hidSvc,
		profileSvc: profilesvc.New(db, logger.Named("profile"), time.Now),
	}, nil
}

func (c *Controller) Close() error {
	err := c.hidSvc.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

// openDevice opens the keyboard's vendor collection and builds a
// sequencer on top of it. progress lines go to fn when non-nil.
func (c *Controller) openDevice(progress func(line string)) (*lightsvc.Service, *hidsvc.Device, error) {
	dev, err := c.hidSvc.Open(c.config.PreferPage)
	if err != nil {
		return nil, nil, err
	}
	opts := []lightsvc.Option{}
	if c.config.Fast {
		opts = append(opts, lightsvc.WithoutEchoWait(), lightsvc.WithoutReadPhase())
	}
	if progress != nil {
		opts = append(opts, lightsvc.WithProgress(progress))
	}
	svc := lightsvc.New(c.log.Named("light"), dev, opts...)
	if _, err := c.profileSvc.Touch(dev.Collection()); err != nil {
		c.log.Warn("failed to update device profile", zap.Error(err))
	}
	return svc, dev, nil
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}
