package messages

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"telegram-fitness-bot/internal/models"
	"telegram-fitness-bot/internal/utils"
)

// HumanDate turns 2026-03-10 into 10.03.2026; bad input is returned as is.
func HumanDate(date string) string {
	d, err := time.Parse(utils.DateLayout, date)
	if err != nil {
		return date
	}
	return d.Format("02.01.2006")
}

// RenderPlan builds the plan message for one day. Entries must already be
// in session order.
func RenderPlan(date string, entries []models.PlanEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "План на %s\n", HumanDate(date))

	if len(entries) == 0 {
		b.WriteString("\nНа этот день тренировок нет. Отдыхайте!")
		return b.String()
	}

	session, n := -1, 0
	for _, e := range entries {
		if e.Session != session {
			session, n = e.Session, 0
			fmt.Fprintf(&b, "\nСессия %d\n", e.Session)
		}
		n++
		b.WriteString(strconv.Itoa(n) + ". " + e.Title)
		if d := strings.TrimSpace(e.Details); d != "" {
			b.WriteString(" — " + d)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

var periodNames = map[models.Period]string{
	models.PeriodMorning: "утро",
	models.PeriodEvening: "вечер",
}

func PeriodName(p models.Period) string {
	if n, ok := periodNames[p]; ok {
		return n
	}
	return string(p)
}

// FormatWeight prints 80.5 as "80.5 кг" and 80 as "80 кг".
func FormatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " кг"
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}

// RenderDailyReport summarizes the diary of one day.
func RenderDailyReport(date string, plan []models.PlanEntry, weights []models.WeightEntry, rec *models.RecoveryEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Отчёт за %s\n\n", HumanDate(date))

	fmt.Fprintf(&b, "Тренировки в плане: %d\n", len(plan))

	if len(weights) == 0 {
		b.WriteString("Вес: не записан\n")
	} else {
		parts := make([]string, 0, len(weights))
		for _, w := range weights {
			parts = append(parts, PeriodName(w.Period)+" "+FormatWeight(w.Value))
		}
		b.WriteString("Вес: " + strings.Join(parts, ", ") + "\n")
	}

	if rec == nil {
		b.WriteString("Восстановление: не заполнено")
	} else {
		fmt.Fprintf(&b, "Восстановление: сон — %s, питание — %s, растяжка — %s",
			yesNo(rec.Sleep), yesNo(rec.Nutrition), yesNo(rec.Stretching))
	}
	return b.String()
}
