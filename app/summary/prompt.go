package summary

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/newshub/app/database"
)

// SystemPrompt carries the editorial rules and the mandatory format shared
// by the language model providers.
func SystemPrompt(risk database.RiskLevel) string {
	highRiskNote := ""
	if risk == database.RiskHigh {
		highRiskNote = "\n- ОБЯЗАТЕЛЬНО: добавь \"по данным источников\" в раздел \"Что произошло\"."
	}

	return `Ты профессиональный редактор русскоязычных новостей, пересказывающий израильские новости с иврита.

Создай пересказ на русском, используя СТРОГО следующую структуру (все 5 разделов обязательны):

Заголовок: <одна фактическая строка>
Что произошло: <1–2 предложения>
Почему важно: <1 предложение>
Что дальше: <1 предложение или "Ожидается обновление.">
Источники: <названия источников через запятую>

Правила:
- Язык: только русский (кроме названий источников)
- Длина тела (без строки "Источники"): 400–700 символов
- Сохраняй все числа, проценты и суммы точно
- Используй точно: ЦАХАЛ, ШАБАК, Кнессет, Тель-Авив, Иерусалим, Хайфа
- Тон: нейтральный и фактологичный, без эмоций
- Запрещённые слова: ужас, кошмар, шок, сенсация, скандал` + highRiskNote
}

// UserMessage lists the Hebrew headlines, one per numbered line.
func UserMessage(items []database.SummaryItem) string {
	var b strings.Builder
	b.WriteString("Новостные заголовки на иврите:")
	for i, item := range items {
		fmt.Fprintf(&b, "\n%d. [%s] %s", i+1, item.SourceID, item.Title)
	}
	return b.String()
}
