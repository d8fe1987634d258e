package pipeline

import "errors"

var (
	// ErrNoDocuments はドキュメントソースが1件も返さなかった場合のエラー
	ErrNoDocuments = errors.New("no documents loaded from source")

	// ErrNotReady はインデックスが未構築で回答できない場合のエラー
	ErrNotReady = errors.New("knowledge index is not ready")
)
