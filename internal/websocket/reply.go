package websocket

import "sync"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Ack тело подтверждения запроса
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Reply одноразовый ответ на запрос клиента
type Reply struct {
	client *Client
	id     string
	once   sync.Once
}

func NewReply(client *Client, id string) *Reply {
	return &Reply{client: client, id: id}
}

// OK отправляет успешное подтверждение. Возвращает false, если ответ уже был
func (r *Reply) OK(data any) bool {
	return r.send(Ack{Status: StatusOK, Data: data})
}

func (r *Reply) Error(message string) bool {
	return r.send(Ack{Status: StatusError, Message: message})
}

func (r *Reply) send(ack Ack) bool {
	sent := false
	r.once.Do(func() {
		sent = true
		if err := r.client.SendMessage(TypeAck, r.id, ack); err != nil {
			r.client.SendError(err.Error())
		}
	})
	return sent
}
