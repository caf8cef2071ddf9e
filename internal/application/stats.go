package application

import (
	"math"
	"time"
)

// AggregationMode selects how per-camp statistics are combined.
type AggregationMode string

const (
	// ModeGlobal sums every camp and buckets workers by their own project.
	ModeGlobal AggregationMode = "global"
	// ModeScoped sums the visible camps and buckets everything by the camp's site.
	ModeScoped AggregationMode = "scoped"
)

// AttributionAxis names the partition used for the per-site worker counts.
type AttributionAxis string

const (
	// AxisCampSite attributes a camp's full contents to the camp's own site.
	AxisCampSite AttributionAxis = "camp_site"
	// AxisWorkerProject attributes each worker to the site in its project field.
	AxisWorkerProject AttributionAxis = "worker_project"
)

// SiteShare is one site's slice of a single camp. Capacity is bucketed by
// room project and Workers by worker project; the two partitions differ.
type SiteShare struct {
	Capacity int
	Workers  int
}

// CapacityViolation flags a room holding more workers than it has beds.
type CapacityViolation struct {
	CampID    string
	RoomID    string
	Number    string
	Capacity  int
	Occupants int
}

// CampStat is the per-camp statistic record derived from a room and worker snapshot.
type CampStat struct {
	CampID        string
	CampSite      string
	Rooms         int
	TotalCapacity int
	TotalWorkers  int
	OccupiedBeds  int
	AvailableBeds int
	OccupancyRate float64
	Unassigned    int
	PerSite       map[string]SiteShare
	Violations    []CapacityViolation
}

// SiteStat is one site's entry in an aggregate.
type SiteStat struct {
	Workers       int
	Capacity      int
	Camps         int
	OccupancyRate int
}

// AggregateStats combines the statistics of every camp visible to a principal.
type AggregateStats struct {
	Mode                AggregationMode
	SiteAttributionAxis AttributionAxis
	TotalWorkers        int
	TotalBeds           int
	OccupiedBeds        int
	AvailableBeds       int
	OccupancyRate       int
	TotalCamps          int
	TotalSites          int
	FailedCamps         int
	FailedCampIDs       []string
	Partial             bool
	PerSite             map[string]SiteStat
	PerCamp             map[string]CampStat
	Violations          []CapacityViolation
	ComputedAt          time.Time
}

// computeCampStat derives a camp's statistics. Workers whose room is not part
// of the camp are counted as unassigned and excluded from occupancy.
func computeCampStat(camp Camp, rooms []Room, workers []Worker) CampStat {
	stat := CampStat{
		CampID:   camp.ID,
		CampSite: camp.Site,
		Rooms:    len(rooms),
		PerSite:  make(map[string]SiteShare),
	}

	occupants := make(map[string]int, len(rooms))
	for _, room := range rooms {
		occupants[room.ID] = 0
	}
	for _, worker := range workers {
		if _, ok := occupants[worker.RoomID]; !ok {
			stat.Unassigned++
			continue
		}
		occupants[worker.RoomID]++
		stat.TotalWorkers++
		if worker.Project != "" {
			share := stat.PerSite[worker.Project]
			share.Workers++
			stat.PerSite[worker.Project] = share
		}
	}

	for _, room := range rooms {
		count := occupants[room.ID]
		stat.TotalCapacity += room.Capacity
		if count > room.Capacity {
			stat.OccupiedBeds += room.Capacity
			stat.Violations = append(stat.Violations, CapacityViolation{
				CampID:    camp.ID,
				RoomID:    room.ID,
				Number:    room.Number,
				Capacity:  room.Capacity,
				Occupants: count,
			})
		} else {
			stat.OccupiedBeds += count
		}
		if room.Project != "" {
			share := stat.PerSite[room.Project]
			share.Capacity += room.Capacity
			stat.PerSite[room.Project] = share
		}
	}
	stat.AvailableBeds = stat.TotalCapacity - stat.OccupiedBeds
	stat.OccupancyRate = occupancyRate(stat.TotalWorkers, stat.TotalCapacity)
	return stat
}

// occupancyRate returns workers as a percentage of capacity, or 0 without capacity.
func occupancyRate(workers, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(workers) / float64(capacity) * 100
}

func displayRate(workers, capacity int) int {
	return int(math.Round(occupancyRate(workers, capacity)))
}

func cloneAggregate(stats AggregateStats) AggregateStats {
	out := stats
	if stats.FailedCampIDs != nil {
		out.FailedCampIDs = append([]string(nil), stats.FailedCampIDs...)
	}
	if stats.PerSite != nil {
		out.PerSite = make(map[string]SiteStat, len(stats.PerSite))
		for site, value := range stats.PerSite {
			out.PerSite[site] = value
		}
	}
	if stats.PerCamp != nil {
		out.PerCamp = make(map[string]CampStat, len(stats.PerCamp))
		for id, value := range stats.PerCamp {
			out.PerCamp[id] = cloneCampStat(value)
		}
	}
	if stats.Violations != nil {
		out.Violations = append([]CapacityViolation(nil), stats.Violations...)
	}
	return out
}

func cloneCampStat(stat CampStat) CampStat {
	out := stat
	if stat.PerSite != nil {
		out.PerSite = make(map[string]SiteShare, len(stat.PerSite))
		for site, share := range stat.PerSite {
			out.PerSite[site] = share
		}
	}
	if stat.Violations != nil {
		out.Violations = append([]CapacityViolation(nil), stat.Violations...)
	}
	return out
}
