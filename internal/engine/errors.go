package engine

import "errors"

// Аномалии разбора текстового описания flow.
// Компилятор их не возвращает как ошибки: блок пропускается,
// аномалия попадает в Result.Warnings.
var (
	// ErrEmptyDefinition — в описании не найдено ни одной категории.
	ErrEmptyDefinition = errors.New("flow definition has no categories")

	// ErrUnparsedText — фрагмент текста не похож на блок Category{...}.
	ErrUnparsedText = errors.New("unparsed text in flow definition")

	// ErrDuplicateCategory — категория с таким именем уже была.
	ErrDuplicateCategory = errors.New("duplicate category")

	// ErrEmptyCategory — в категории нет ни одной стадии.
	ErrEmptyCategory = errors.New("category has no stages")

	// ErrEmptyStageName — пустое имя стадии между "->".
	ErrEmptyStageName = errors.New("empty stage name")

	// ErrDuplicateStage — стадия повторяется в категории.
	ErrDuplicateStage = errors.New("duplicate stage in category")

	// ErrUnknownStage — подстадии описаны для несуществующей стадии.
	ErrUnknownStage = errors.New("sub-stages reference unknown stage")

	// ErrEmptySubStage — пустое имя подстадии.
	ErrEmptySubStage = errors.New("empty sub-stage name")

	// ErrDuplicateSubStage — подстадия повторяется в стадии.
	ErrDuplicateSubStage = errors.New("duplicate sub-stage")
)

// Ошибки построения DAG стадий.
var (
	// ErrMissingNode — ребро ссылается на несуществующую стадию.
	ErrMissingNode = errors.New("edge references unknown stage")

	// ErrCyclicDependency — обнаружен цикл в рёбрах.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)

// ParseAnomaly — пропущенный при разборе фрагмент описания.
type ParseAnomaly struct {
	Category string // категория, где обнаружена аномалия
	Stage    string // стадия (для подстадий)
	Message  string // описание
	Err      error  // базовая ошибка
}

// Error реализует интерфейс error.
func (a *ParseAnomaly) Error() string {
	switch {
	case a.Category != "" && a.Stage != "":
		return a.Category + "/" + a.Stage + ": " + a.Message
	case a.Category != "":
		return a.Category + ": " + a.Message
	default:
		return a.Message
	}
}

// Unwrap возвращает базовую ошибку.
func (a *ParseAnomaly) Unwrap() error {
	return a.Err
}

func newAnomaly(category, stage, message string, err error) *ParseAnomaly {
	return &ParseAnomaly{
		Category: category,
		Stage:    stage,
		Message:  message,
		Err:      err,
	}
}
