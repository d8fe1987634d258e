package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/jinford/portfolio-rag/internal/interface/httpapi"
)

// ServeAction はHTTPサーバ起動コマンドのアクション
func ServeAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// 起動時にインデックスを事前構築する。失敗してもサーバは起動し、
	// 最初のチャットリクエストで再試行される（遅延初期化）
	if err := appCtx.Container.Pipeline.Initialize(ctx); err != nil {
		appCtx.Logger.Warn("起動時のインデックス構築に失敗。初回リクエストで再試行します",
			slog.String("error", err.Error()))
	}

	handler := httpapi.NewHandler(appCtx.Container.Pipeline, appCtx.Logger)
	router := httpapi.NewRouter(handler, appCtx.Config.Server.AllowedOrigins)
	server := httpapi.NewServer(appCtx.Config.Server.Addr, router, appCtx.Logger)

	return server.Run(ctx)
}
