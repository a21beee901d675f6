// Package mq публикует снимки статусов в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — topic exchange flowtrack.status и временные очереди подписчиков
//   - publisher.go  — публикация снимков (status.updated)
//   - consumer.go   — потребление снимков (flowtrack-cli status tail)
//
// Routing key снимка — status.<flow>, поэтому подписчик может слушать
// один flow (status.sales) или все сразу (status.*).
package mq
