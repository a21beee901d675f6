// Package engine содержит компилятор описания flow.
//
// Включает:
//   - parser.go — разбор текста Category{A->B}... и подстадий в Graph
//   - dag.go    — DAG стадий: проверка инвариантов и топологический порядок
//
// Компилятор не зависит от состояния рантайма и никогда не падает
// на некорректном вводе: пропущенные фрагменты возвращаются как
// предупреждения (ParseAnomaly).
package engine
