// Package server は、HTTPサーバーとWebSocket通信を管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// WebSocket接続の管理、セッション操作APIの提供を担当します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - OpenAPI定義から生成されたServerInterfaceの実装
//   - キャプチャセッションの操作エンドポイントの提供
//   - WebSocketによる統合イベントの配信
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - APIの形はoapi-codegenで生成されたinternal/generatedに従う
//   - WebSocketはgorilla/websocketを使用
//   - 複数クライアントの同時接続をサポート
package server
