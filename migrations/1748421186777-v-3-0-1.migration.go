package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"chatbot-api/pkg/migration"
)

// Migration1748421186777_V3_0_1 はブロックのフォールバック設定を正規化する。
// max_attempts を整数に揃え、メッセージが空のフォールバックを無効化する。
var Migration1748421186777_V3_0_1 = migration.Funcs{
	UpFunc:   standardizeBlockFallbacks,
	DownFunc: revertBlockFallbacks,
}

func init() {
	migration.Register("v3.0.1", Migration1748421186777_V3_0_1)
}

type blockRow struct {
	ID      string
	Options string
}

type blockFallback map[string]any

func standardizeBlockFallbacks(ctx context.Context, tx migration.Tx, s *migration.Services) error {
	db := tx.ORM().WithContext(ctx)
	if !db.Migrator().HasTable("blocks") {
		s.Logger.InfoContext(ctx, "[Migration v3.0.1] blocks table not found, nothing to do")
		return nil
	}

	var rows []blockRow
	if err := db.Table("blocks").Select("id", "options").Where("options IS NOT NULL").Find(&rows).Error; err != nil {
		return fmt.Errorf("loading blocks: %w", err)
	}

	var converted, deactivated int
	for _, row := range rows {
		options, fallback, ok := decodeFallback(row.Options)
		if !ok {
			continue
		}

		changed := false
		if raw, isString := fallback["max_attempts"].(string); isString {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("block %s: max_attempts %q is not an integer", row.ID, raw)
			}
			fallback["max_attempts"] = n
			converted++
			changed = true
		}
		if messages, isList := fallback["message"].([]any); isList && len(messages) == 0 {
			fallback["max_attempts"] = 0
			fallback["active"] = false
			deactivated++
			changed = true
		}
		if !changed {
			continue
		}

		options["fallback"] = fallback
		encoded, err := json.Marshal(options)
		if err != nil {
			return fmt.Errorf("block %s: encoding options: %w", row.ID, err)
		}
		if err := db.Table("blocks").Where("id = ?", row.ID).Update("options", string(encoded)).Error; err != nil {
			return fmt.Errorf("block %s: updating options: %w", row.ID, err)
		}
	}

	s.Logger.InfoContext(ctx, fmt.Sprintf("[Migration v3.0.1] Converted max_attempts to integer in %d blocks.", converted))
	s.Logger.InfoContext(ctx, fmt.Sprintf("[Migration v3.0.1] Deactivated fallback and set max_attempts=0 in %d blocks with empty fallback messages.", deactivated))
	return nil
}

// revertBlockFallbacks はデータ補正のため元に戻せない。
func revertBlockFallbacks(ctx context.Context, _ migration.Tx, s *migration.Services) error {
	s.Logger.InfoContext(ctx, "[Migration v3.0.1] No rollback logic implemented as this is a data correction migration.")
	return migration.ErrFailed
}

func decodeFallback(raw string) (map[string]any, blockFallback, bool) {
	var options map[string]any
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, nil, false
	}
	fallback, ok := options["fallback"].(map[string]any)
	if !ok {
		return nil, nil, false
	}
	return options, fallback, true
}
