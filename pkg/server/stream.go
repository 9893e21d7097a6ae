package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Kevin-Rudy/goiperf/pkg/core"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

// 行内的CR/LF会提前结束SSE字段，写出前替换为空格
var sseLineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// replayCount 读取 ?replay=N，缺省使用配置值
func (s *Server) replayCount(r *http.Request) int {
	if v := r.URL.Query().Get("replay"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return s.config.Replay
}

// handleStream 以SSE推送事件
// 日志行写成 data: [时间] 内容，其余事件写成带名字的事件，数据为JSON
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	sub := s.ctl.Subscribe("sse:"+r.RemoteAddr, s.replayCount(r))
	defer sub.Close()
	log.Debug("SSE客户端已连接", "remote", r.RemoteAddr, "id", sub.ID())

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		waitCtx, cancel := context.WithTimeout(ctx, s.config.KeepAlive)
		events, err := sub.Next(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
				continue
			}
			log.Debug("SSE客户端已断开", "remote", r.RemoteAddr, "dropped", sub.Dropped(), "err", err)
			return
		}

		for _, ev := range events {
			if err := writeSSE(w, ev); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

// writeSSE 写出一个SSE帧
func writeSSE(w io.Writer, ev core.Event) error {
	if ev.Kind == core.EventLine && ev.Line != nil {
		_, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", ev.Seq, sseLineBreaks.Replace(ev.Line.String()))
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}

// handleWebSocket 以WebSocket推送事件，每个事件一条JSON文本消息
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误应答
		log.Debug("WebSocket升级失败", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	sub := s.ctl.Subscribe("ws:"+r.RemoteAddr, s.replayCount(r))
	defer sub.Close()
	log.Debug("WebSocket客户端已连接", "remote", r.RemoteAddr, "id", sub.ID())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 读循环处理控制帧，对端关闭时结束推送
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug("WebSocket读取失败", "remote", r.RemoteAddr, "err", err)
				}
				return
			}
		}
	}()

	for {
		events, err := sub.Next(ctx)
		if err != nil {
			break
		}
		for _, ev := range events {
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("WebSocket写入失败", "remote", r.RemoteAddr, "err", err)
				return
			}
		}
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	log.Debug("WebSocket客户端已断开", "remote", r.RemoteAddr, "dropped", sub.Dropped())
}
