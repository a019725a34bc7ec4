// Команда cleanup удаляет все комнаты, участников, чаты и сообщения
package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/thereayou/teamchat/internal/database"
	"github.com/thereayou/teamchat/pkg/log"
)

func main() {
	_ = godotenv.Load()

	dsn := flag.String("db", os.Getenv("DATABASE_URL"), "database DSN (postgres or sqlite:<path>)")
	yes := flag.Bool("yes", false, "confirm deletion")
	flag.Parse()

	log.Init(log.Config{Level: "info", Pretty: true, ServiceName: "teamchat-cleanup"})

	if !*yes {
		log.L().Fatal().Msg("refusing to delete data without -yes")
	}

	db, err := database.Connect(*dsn)
	if err != nil {
		log.L().Fatal().Err(err).Msg("database connect failed")
	}
	defer db.Close()

	if err := db.DeleteAll(context.Background()); err != nil {
		log.L().Fatal().Err(err).Msg("cleanup failed")
	}
	log.L().Info().Msg("all rooms, users, chats and messages deleted")
}
