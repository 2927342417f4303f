package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// MonthName returns the Portuguese name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// FormatCurrency renders value as Brazilian reais, e.g. R$ 1.234,56.
func FormatCurrency(value float64) string {
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	cents := int64(math.Round(value * 100))
	whole := fmt.Sprintf("%d", cents/100)

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}
