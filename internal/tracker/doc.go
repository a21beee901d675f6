// Package tracker реализует агрегацию и рассылку статусов flows.
//
// Для каждого зарегистрированного flow работает ровно один цикл опроса:
//
//	idle → polling → broadcasting → idle → ...
//
// На каждом тике цикл читает актуальную регистрацию flow из реестра,
// опрашивает оба провайдера независимо, накладывает on-prem результаты
// на результаты Airflow и рассылает снимок подписчикам через fanout.Hub.
//
// Тики одного flow строго последовательны. Удаление flow отменяет его
// цикл и дожидается завершения: после возврата UnregisterFlow снимков
// этого flow больше не будет.
package tracker
