package websocket

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/PhuocnhQn/photo-frame-editor/controller"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// StateLookup returns the current state of an editing session.
type StateLookup func(sessionID string) (controller.State, error)

type ackInvoker func(err error, payload map[string]any)

var (
	subscribers = make(map[string]int)
	subsMutex   sync.RWMutex
)

// GetSubscribers returns the number of live sockets per session.
func GetSubscribers() map[string]int {
	subsMutex.RLock()
	defer subsMutex.RUnlock()

	subs := make(map[string]int, len(subscribers))
	for k, v := range subscribers {
		subs[k] = v
	}
	return subs
}

func subscribe(sessionID string) {
	subsMutex.Lock()
	subscribers[sessionID]++
	subsMutex.Unlock()
}

func unsubscribe(sessionID string) {
	subsMutex.Lock()
	defer subsMutex.Unlock()
	if subscribers[sessionID] <= 1 {
		delete(subscribers, sessionID)
		return
	}
	subscribers[sessionID]--
}

func sessionRoom(sessionID string) socketio.Room {
	return socketio.Room("session:" + sessionID)
}

// SetupSocketIO returns a socket.io server on which browsers subscribe to the
// state of an editing session with "join-session". Each subscriber receives
// the current state right away and a "scene-updated" event after every change.
func SetupSocketIO(lookup StateLookup, origins []string) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(socketCors(origins))
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		me := socket.Id()

		var (
			mu     sync.Mutex
			joined = make(map[string]bool)
		)

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("join-session", func(datas ...any) {
			ack, args := extractAck(datas)
			sessionID, _ := firstString(args)
			if sessionID == "" {
				respond(socket, ack, "join-session-ack", errorPayload(fmt.Errorf("session id is required")))
				return
			}

			st, err := lookup(sessionID)
			if err != nil {
				respond(socket, ack, "join-session-ack", errorPayload(err))
				return
			}
			payload, err := statePayload(sessionID, st)
			if err != nil {
				respond(socket, ack, "join-session-ack", errorPayload(err))
				return
			}

			mu.Lock()
			if !joined[sessionID] {
				joined[sessionID] = true
				socket.Join(sessionRoom(sessionID))
				subscribe(sessionID)
			}
			mu.Unlock()

			logrus.WithFields(logrus.Fields{"socket": me, "session": sessionID}).Debug("Socket joined session")
			_ = socket.Emit("scene-updated", payload)
			respond(socket, ack, "join-session-ack", map[string]any{"status": "ok"})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("leave-session", func(datas ...any) {
			ack, args := extractAck(datas)
			sessionID, _ := firstString(args)

			mu.Lock()
			if joined[sessionID] {
				delete(joined, sessionID)
				socket.Leave(sessionRoom(sessionID))
				unsubscribe(sessionID)
			}
			mu.Unlock()
			respond(socket, ack, "", map[string]any{"status": "ok"})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("disconnecting", func(datas ...any) {
			mu.Lock()
			for sessionID := range joined {
				unsubscribe(sessionID)
			}
			joined = map[string]bool{}
			mu.Unlock()
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv
}

// socketCors allows the configured origins; "*" allows any origin.
func socketCors(origins []string) *types.Cors {
	allowed := make([]any, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return &types.Cors{Origin: "*"}
		}
		allowed = append(allowed, o)
	}
	return &types.Cors{Origin: allowed, Credentials: true}
}

// Publish pushes st to every socket subscribed to the session.
func Publish(srv *socketio.Server, sessionID string, st controller.State) {
	payload, err := statePayload(sessionID, st)
	if err != nil {
		logrus.WithError(err).WithField("session", sessionID).Error("Failed to encode scene update")
		return
	}
	if err := srv.To(sessionRoom(sessionID)).Emit("scene-updated", payload); err != nil {
		logrus.WithError(err).WithField("session", sessionID).Warn("Failed to emit scene update")
	}
}

// statePayload converts st into the plain map the socket.io encoder expects.
func statePayload(sessionID string, st controller.State) (map[string]any, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	payload["sessionId"] = sessionID
	return payload, nil
}

func errorPayload(err error) map[string]any {
	return map[string]any{"status": "error", "error": err.Error()}
}

func firstString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

func extractAck(datas []any) (ack ackInvoker, args []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	ack = wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts a client acknowledgement callback of any signature.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var v any
			switch {
			case typ.NumIn() == 1 && err == nil, i == 1:
				v = payload
			case i == 0:
				v = err
			}
			args[i] = coerceValue(v, typ.In(i))
		}
		value.Call(args)
	}
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(targetType) {
		return rv
	}
	if targetType.Kind() == reflect.Interface && targetType.NumMethod() == 0 {
		return rv
	}
	if targetType.Kind() == reflect.String {
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	}
	return reflect.Zero(targetType)
}

func respond(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any) {
	if ack != nil {
		var err error
		if msg, ok := payload["error"].(string); ok {
			err = fmt.Errorf("%s", msg)
		}
		ack(err, payload)
	}
	if event != "" {
		_ = socket.Emit(event, payload)
	}
}
