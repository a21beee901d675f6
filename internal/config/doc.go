// Package config загружает настройки процесса и конфигурации flows.
//
// Настройки процесса читаются из переменных окружения (settings.go).
// Конфигурация flow — файл <flow>.json или <flow>.yaml в CONFIG_DIR:
//
//	flowName: sales
//	refreshInterval: 60
//	databases:
//	  aws:    {host: airflow-db, user: reader, password: ..., database: airflow}
//	  oracle: {host: ora-prod, user: svc, password: ..., service: ORCLPDB}
//	flowDefinition:
//	  overall: "Ingest{extract->load}Report{publish}"
//	  subStages:
//	    Ingest: {extract: "pull->unpack"}
//	stageMappings:
//	  aws:    {extract: sales_extract_dag}
//	  onPrem: {publish: {bpf_id: 12, process_id: 7}}
//
// Файл проверяется встроенной JSON-схемой один раз при загрузке
// и превращается в domain.Registration.
package config
