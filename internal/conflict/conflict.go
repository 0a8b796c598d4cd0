// Package conflict detects slot collisions between candidate appointments
// and the existing book, and DNI collisions between patient records.
package conflict

import (
	"sort"
	"strings"

	"turnero/internal/model"
)

// SlotConflict is one (date, time) collision between a candidate appointment
// and an existing occupant of that slot.
type SlotConflict struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	PatientName string `json:"patientName"`
	OccupantID  string `json:"-"`
}

// OccupiedKeys returns the (date, time) keys held by appointments whose id is
// not in skip. Keys map to every occupying appointment: pre-existing
// duplicates sharing a key (tolerated, never produced by confirmed writes)
// are all listed, so displacing a slot clears it completely.
func OccupiedKeys(appointments []model.Appointment, skip map[string]bool) map[string][]model.Appointment {
	occ := make(map[string][]model.Appointment, len(appointments))
	for _, a := range appointments {
		if skip[a.ID] {
			continue
		}
		occ[a.SlotKey()] = append(occ[a.SlotKey()], a)
	}
	return occ
}

// SlotConflicts cross-checks candidates against slots occupied by *other*
// appointments. The result is sorted by (date, time, patient name) for
// stable presentation to the user.
func SlotConflicts(existing, candidates []model.Appointment, patients []model.Patient) []SlotConflict {
	skip := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		skip[c.ID] = true
	}
	occ := OccupiedKeys(existing, skip)

	names := make(map[string]string, len(patients))
	for _, p := range patients {
		names[p.ID] = p.Name
	}

	var out []SlotConflict
	seen := make(map[string]bool)
	for _, c := range candidates {
		holders, ok := occ[c.SlotKey()]
		if !ok || seen[c.SlotKey()] {
			continue
		}
		seen[c.SlotKey()] = true
		for _, holder := range holders {
			name := names[holder.PatientID]
			if name == "" {
				name = "Unknown"
			}
			out = append(out, SlotConflict{
				Date:        c.Date,
				Time:        c.Time,
				PatientName: name,
				OccupantID:  holder.ID,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].PatientName < out[j].PatientName
	})
	return out
}

// DNIPair is a standing identity conflict: two patient records sharing a DNI
// under differently-normalized names.
type DNIPair struct {
	DNI string        `json:"dni"`
	A   model.Patient `json:"a"`
	B   model.Patient `json:"b"`
}

// NormalizeName trims, collapses inner whitespace and lower-cases a patient
// name so that "Ana  Paz " and "ana paz" compare equal.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ScanDNI groups patients by non-empty trimmed DNI and emits every pairwise
// combination within a group whose normalized names differ. Pairs are ordered
// by DNI, then by the records' positions in the input.
func ScanDNI(patients []model.Patient) []DNIPair {
	groups := make(map[string][]model.Patient)
	var order []string
	for _, p := range patients {
		dni := strings.TrimSpace(p.DNI)
		if dni == "" {
			continue
		}
		if _, ok := groups[dni]; !ok {
			order = append(order, dni)
		}
		groups[dni] = append(groups[dni], p)
	}
	sort.Strings(order)

	var out []DNIPair
	for _, dni := range order {
		g := groups[dni]
		if len(g) < 2 {
			continue
		}
		for i := 0; i < len(g); i++ {
			for j := i + 1; j < len(g); j++ {
				if NormalizeName(g[i].Name) == NormalizeName(g[j].Name) {
					continue
				}
				out = append(out, DNIPair{DNI: dni, A: g[i], B: g[j]})
			}
		}
	}
	return out
}
