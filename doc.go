// Package webchat provides the core of an embeddable streaming chat client:
// a session layer with durable persistence, a streaming SSE transport with
// bounded reconnection, a connection state machine, and an adapter for the
// AG-UI structured streaming-event protocol.
//
// The library has no UI and no framework dependencies. A host application
// wires the pieces together:
//
//   - [github.com/weops/webchat/session]: owns the logical chat session
//     (id, message history, timestamps) and persists it through a
//     [github.com/weops/webchat/store] adapter with a 24h expiry policy.
//   - [github.com/weops/webchat/sse]: maintains the streaming connection to
//     the chat backend, parses newline-delimited payloads into [Message]
//     values, and reconnects with bounded linear backoff.
//   - [github.com/weops/webchat/agui]: classifies incoming payloads as AG-UI
//     protocol events or legacy plain messages and fans parsed events out to
//     subscribers.
//   - [github.com/weops/webchat/state]: tracks the connection lifecycle
//     (idle, connecting, connected, chatting, error, closed) and notifies
//     listeners on every transition.
//
// # Basic Usage
//
//	mgr := session.NewManager(session.WithAdapter(store.NewFileAdapter(dir)))
//	sess := mgr.Init(ctx, "user-42")
//
//	machine := state.NewMachine()
//	adapter := agui.NewHandler()
//	handler := sse.NewHandler()
//
//	handler.On(sse.EventMessage, func(ev sse.Event) {
//	    res := adapter.ProcessSSEData(ev.Data)
//	    if res.Kind == agui.ResultLegacyMessage && ev.Message != nil {
//	        mgr.AddMessage(ctx, *ev.Message)
//	    }
//	})
//
//	machine.Transition(state.Connecting)
//	if err := handler.Connect(ctx, cfg.SSEURL, nil); err != nil {
//	    machine.Transition(state.Error)
//	    return err
//	}
//	machine.Transition(state.Connected)
//
// The root package holds the shared wire types ([Message], [Config]) and the
// errors the subsystems return.
package webchat
