package events

// Publisher — примитив доставки в realtime-канал. Доставка best-effort:
// вызывающий не откатывает зафиксированное состояние из-за ошибки публикации.
type Publisher interface {
	// Publish рассылает событие всем подключённым к комнате.
	Publish(roomID string, ev Event) error
	// PublishTo доставляет событие одному пользователю комнаты.
	PublishTo(roomID string, userID int64, ev Event) error
}
