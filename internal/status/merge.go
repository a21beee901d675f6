package status

import "github.com/shaiso/Flowtrack/internal/domain"

// Merge накладывает результаты on-prem провайдера на результаты Airflow.
//
// Если стадия есть в обоих наборах, побеждает on-prem запись
// (перезапись последним, а не объединение).
func Merge(orchestrator, process map[string]domain.StageStatus) map[string]domain.StageStatus {
	merged := make(map[string]domain.StageStatus, len(orchestrator)+len(process))
	for name, st := range orchestrator {
		merged[name] = st
	}
	for name, st := range process {
		merged[name] = st
	}
	return merged
}

// FillMissing добавляет "unknown" для стадий графа, которых нет в снимке,
// чтобы подписчик видел все стадии, а не только замапленные.
func FillMissing(stages map[string]domain.StageStatus, graph *domain.Graph) {
	if graph == nil {
		return
	}
	for _, label := range graph.StageLabels() {
		if _, ok := stages[label]; !ok {
			stages[label] = domain.NewUnknownStatus("stage has no backend mapping")
		}
	}
}
