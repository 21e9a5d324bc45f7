package stubserver

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// changeEvent mirrors the feed's wire shape.
type changeEvent struct {
	Table string `json:"table"`
	Type  string `json:"type"`
	New   Row    `json:"new,omitempty"`
	Old   Row    `json:"old,omitempty"`
}

type serverFrame struct {
	Type  string       `json:"type"`
	Topic string       `json:"topic,omitempty"`
	Event *changeEvent `json:"event,omitempty"`
}

type clientFrame struct {
	Action string   `json:"action"`
	Topic  string   `json:"topic"`
	Table  string   `json:"table"`
	Filter string   `json:"filter,omitempty"`
	Events []string `json:"events,omitempty"`
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := &subscriber{conn: conn}
	s.subMu.Lock()
	s.subs[sub] = struct{}{}
	s.subMu.Unlock()

	defer func() {
		s.subMu.Lock()
		delete(s.subs, sub)
		s.subMu.Unlock()
		conn.Close()
	}()

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Action != "subscribe" {
			continue
		}
		events := make(map[string]bool, len(frame.Events))
		for _, e := range frame.Events {
			events[e] = true
		}
		s.subMu.Lock()
		sub.topics = append(sub.topics, subTopic{
			topic:  frame.Topic,
			table:  frame.Table,
			filter: frame.Filter,
			events: events,
		})
		s.subMu.Unlock()
	}
}

// broadcast fans a change event out to every matching subscription.
func (s *Server) broadcast(table, eventType string, newRow, oldRow Row) {
	ev := &changeEvent{Table: table, Type: eventType, New: newRow, Old: oldRow}
	match := newRow
	if match == nil {
		match = oldRow
	}

	s.subMu.Lock()
	type delivery struct {
		sub   *subscriber
		topic string
	}
	var targets []delivery
	for sub := range s.subs {
		for _, t := range sub.topics {
			if t.table != table {
				continue
			}
			if len(t.events) > 0 && !t.events[eventType] {
				continue
			}
			if !filterMatches(t.filter, match) {
				continue
			}
			targets = append(targets, delivery{sub, t.topic})
		}
	}
	s.subMu.Unlock()

	for _, d := range targets {
		frame := serverFrame{Type: "change", Topic: d.topic, Event: ev}
		data, _ := json.Marshal(frame)
		d.sub.writeM.Lock()
		d.sub.conn.WriteMessage(websocket.TextMessage, data)
		d.sub.writeM.Unlock()
	}
}

// filterMatches evaluates a subscription filter ("col=eq.v" or
// "col=in.(a,b)") against a row. Empty filter matches everything.
func filterMatches(filter string, row Row) bool {
	if filter == "" || row == nil {
		return true
	}
	vals, err := url.ParseQuery(filter)
	if err != nil {
		return true
	}
	fs := filterSet{}
	for column, exprs := range vals {
		for _, expr := range exprs {
			if c, ok := parseCondition(column, expr); ok {
				fs.conds = append(fs.conds, c)
			}
		}
	}
	return fs.match(row)
}
