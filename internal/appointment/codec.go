package appointment

import (
	"fmt"
	"strconv"
	"strings"
)

// Medications are stored as three comma-joined columns in the same order.

func encodeMedications(meds []Medication) (names, statuses, quantities string) {
	n := make([]string, len(meds))
	s := make([]string, len(meds))
	q := make([]string, len(meds))
	for i, med := range meds {
		n[i] = med.Name
		s[i] = string(med.Status)
		q[i] = strconv.Itoa(med.Quantity)
	}
	return strings.Join(n, ","), strings.Join(s, ","), strings.Join(q, ",")
}

func decodeMedications(names, statuses, quantities string) ([]Medication, error) {
	n, s, q := splitList(names), splitList(statuses), splitList(quantities)
	if len(n) != len(s) || len(n) != len(q) {
		return nil, fmt.Errorf("medication columns disagree: %d names, %d statuses, %d quantities", len(n), len(s), len(q))
	}

	meds := make([]Medication, 0, len(n))
	for i := range n {
		status, err := ParseDispenseStatus(s[i])
		if err != nil {
			return nil, err
		}
		qty, err := strconv.Atoi(strings.TrimSpace(q[i]))
		if err != nil {
			return nil, fmt.Errorf("medication %q quantity: %w", n[i], err)
		}
		meds = append(meds, Medication{Name: strings.TrimSpace(n[i]), Status: status, Quantity: qty})
	}
	return meds, nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
