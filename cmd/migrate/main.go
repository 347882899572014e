package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"lostfound/config"
	"lostfound/internal/repository"

	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [up|down|status]\n", os.Args[0])
	}
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	dsn, err := config.DatabaseURL()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	db, err := config.ConnectionDb(dsn)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.WithError(err).Fatal("database handle")
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "up":
		err = repository.RunMigrations(ctx, sqlDB)
	case "down":
		err = repository.RollbackMigration(ctx, sqlDB)
	case "status":
		err = repository.MigrationStatus(ctx, sqlDB)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.WithError(err).WithField("command", command).Fatal("migration failed")
	}
	logger.WithField("command", command).Info("migration finished")
}
