package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// IndexAction はインデックス構築コマンドのアクション。
// ドキュメントを読み込み、新しいインデックス世代を構築して終了する
func IndexAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if err := appCtx.Container.Pipeline.Initialize(ctx); err != nil {
		return fmt.Errorf("インデックス構築に失敗: %w", err)
	}

	fmt.Printf("インデックス構築が完了しました（%dチャンク）\n",
		appCtx.Container.Pipeline.ChunkCount())
	return nil
}
