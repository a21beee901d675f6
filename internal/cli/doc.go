// Package cli реализует инструмент командной строки Flowtrack.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Flowtrack API.
// Работает через HTTP и WebSocket; из внутренних пакетов использует
// только доменные типы, компилятор графа (для локального compile)
// и consumer RabbitMQ (для status tail). internal/api не импортирует.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Flowtrack API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse),
// обработку ошибок и подписку на снимки через WebSocket.
//
//	client := cli.NewClient("http://localhost:8080")
//	flows, err := client.ListFlows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Warn/Error) — в stderr.
// Это позволяет использовать pipe: flowtrack status show sales --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - flow: list, show, delete, upload, compile
//   - config: list, show, delete
//   - status: show, watch, tail
//
// Каждая группа создаётся через фабричную функцию (NewFlowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
