package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/jinford/portfolio-rag/internal/core/pipeline"
)

// AskAction は質問応答コマンドのアクション。
// 単発の質問に回答して終了する。セッションは使い捨て
func AskAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	showSources := cmd.Bool("show-sources")

	question := cmd.Args().First()
	if question == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Container.Pipeline.HandleChat(ctx, pipeline.ChatParams{
		SessionID: mo.None[uuid.UUID](),
		Message:   question,
	})
	if err != nil {
		return fmt.Errorf("質問応答に失敗: %w", err)
	}

	fmt.Println(result.Answer)

	if showSources && len(result.SourceIDs) > 0 {
		fmt.Println("\n--- 参照ソース ---")
		for i, source := range result.SourceIDs {
			fmt.Printf("[%d] %s\n", i+1, source)
		}
	}

	return nil
}
