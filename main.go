package main

import (
	"time"

	"github.com/codingjojo/community/config"
	"github.com/codingjojo/community/models"
	"github.com/codingjojo/community/routes"
	"github.com/codingjojo/community/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.PostLike{},
		&models.CommentLike{},
		&models.SavedPost{},
		&models.Follow{},
		&models.MutedPost{},
		&models.Report{},
	)

	r := routes.SetupRouter(db)

	// Fold buffered redis view counters into posts.views periodically
	utils.StartViewFlusher(db, time.Minute)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
