package diff

// Match is the relation between an actual and an expected sequence element.
type Match int

const (
	NoMatch Match = iota
	Similar       // same shape, worth a nested diff
	Same          // equal
)

// StepKind is the operation of one edit script step.
type StepKind int

const (
	StepKeep       StepKind = iota // A and B are equal
	StepChange                     // A should become B; diff them recursively
	StepRemove                     // A has no counterpart
	StepInsert                     // B has no counterpart
	StepMove                       // A equals B but sits elsewhere
	StepMoveTarget                 // where the element moved by StepMove belongs
)

// Step is one entry of a sequence edit script. A indexes the actual
// sequence and B the expected one; -1 marks an absent side.
type Step struct {
	Kind  StepKind
	A, B  int
	Group int
}

// MatchFunc relates actual element i to expected element j.
type MatchFunc func(i, j int) (Match, error)

// Align computes an edit script turning the actual sequence (length n) into
// the expected one (length m) from a longest common subsequence over
// elements that are equal or similar. Where several alignments are equally
// long, insertions are emitted before removals.
func Align(n, m int, match MatchFunc) ([]Step, error) {
	steps := make([]Step, 0, max(n, m))

	// Common prefix and suffix of equal elements need no table.
	lo := 0
	for lo < n && lo < m {
		r, err := match(lo, lo)
		if err != nil {
			return nil, err
		}
		if r != Same {
			break
		}
		lo++
	}
	hiA, hiB := n, m
	for hiA > lo && hiB > lo {
		r, err := match(hiA-1, hiB-1)
		if err != nil {
			return nil, err
		}
		if r != Same {
			break
		}
		hiA--
		hiB--
	}
	for i := 0; i < lo; i++ {
		steps = append(steps, Step{Kind: StepKeep, A: i, B: i})
	}

	rows, cols := hiA-lo, hiB-lo
	rel := make([]Match, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			r, err := match(lo+i, lo+j)
			if err != nil {
				return nil, err
			}
			rel[i*cols+j] = r
		}
	}

	// lcs[i][j] is the alignment length of the suffixes starting at i, j.
	lcs := make([][]int, rows+1)
	for i := range lcs {
		lcs[i] = make([]int, cols+1)
	}
	for i := rows - 1; i >= 0; i-- {
		for j := cols - 1; j >= 0; j-- {
			switch {
			case rel[i*cols+j] != NoMatch:
				lcs[i][j] = lcs[i+1][j+1] + 1
			case lcs[i+1][j] > lcs[i][j+1]:
				lcs[i][j] = lcs[i+1][j]
			default:
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	i, j := 0, 0
	for i < rows || j < cols {
		switch {
		case i < rows && j < cols && rel[i*cols+j] != NoMatch && lcs[i][j] == lcs[i+1][j+1]+1:
			kind := StepKeep
			if rel[i*cols+j] == Similar {
				kind = StepChange
			}
			steps = append(steps, Step{Kind: kind, A: lo + i, B: lo + j})
			i++
			j++
		case j < cols && (i == rows || lcs[i][j+1] >= lcs[i+1][j]):
			steps = append(steps, Step{Kind: StepInsert, A: -1, B: lo + j})
			j++
		default:
			steps = append(steps, Step{Kind: StepRemove, A: lo + i, B: -1})
			i++
		}
	}

	for k := 0; hiA+k < n; k++ {
		steps = append(steps, Step{Kind: StepKeep, A: hiA + k, B: hiB + k})
	}
	return steps, nil
}

// DetectMoves turns a removal and an insertion of equal elements into a
// move. Moves whose sources and targets are both adjacent in the script
// form one relocated run and share a Group number.
func DetectMoves(steps []Step, equal func(i, j int) (bool, error)) ([]Step, error) {
	out := make([]Step, len(steps))
	copy(out, steps)

	used := make(map[int]bool)
	for t := range out {
		if out[t].Kind != StepInsert {
			continue
		}
		for s := range out {
			if out[s].Kind != StepRemove || used[s] {
				continue
			}
			eq, err := equal(out[s].A, out[t].B)
			if err != nil {
				return nil, err
			}
			if !eq {
				continue
			}
			used[s] = true
			a, b := out[s].A, out[t].B
			out[s] = Step{Kind: StepMove, A: a, B: b}
			out[t] = Step{Kind: StepMoveTarget, A: a, B: b}
			break
		}
	}

	targetAt := make(map[int]int)
	for idx, st := range out {
		if st.Kind == StepMoveTarget {
			targetAt[st.B] = idx
		}
	}
	group := 0
	prev := -1
	for idx := range out {
		if out[idx].Kind != StepMove {
			prev = -1
			continue
		}
		t := targetAt[out[idx].B]
		if prev < 0 || out[prev].Kind != StepMove || targetAt[out[prev].B] != t-1 {
			group++
		}
		out[idx].Group = group
		out[t].Group = group
		prev = idx
	}
	return out, nil
}

// PairChanges pairs removals with insertions inside each uninterrupted run
// of removals and insertions. A removal and an insertion for which pairable
// reports true become one StepChange at the removal's position.
func PairChanges(steps []Step, pairable func(i, j int) bool) []Step {
	out := make([]Step, 0, len(steps))
	for start := 0; start < len(steps); {
		kind := steps[start].Kind
		if kind != StepRemove && kind != StepInsert {
			out = append(out, steps[start])
			start++
			continue
		}
		end := start
		for end < len(steps) && (steps[end].Kind == StepRemove || steps[end].Kind == StepInsert) {
			end++
		}
		out = append(out, pairRun(steps[start:end], pairable)...)
		start = end
	}
	return out
}

func pairRun(run []Step, pairable func(i, j int) bool) []Step {
	taken := make([]bool, len(run))
	partner := make(map[int]int)
	for r, st := range run {
		if st.Kind != StepRemove {
			continue
		}
		for c, cand := range run {
			if cand.Kind != StepInsert || taken[c] {
				continue
			}
			if pairable(st.A, cand.B) {
				taken[c] = true
				partner[r] = c
				break
			}
		}
	}

	out := make([]Step, 0, len(run))
	for r, st := range run {
		if taken[r] {
			continue
		}
		if c, ok := partner[r]; ok {
			out = append(out, Step{Kind: StepChange, A: st.A, B: run[c].B})
			continue
		}
		out = append(out, st)
	}
	return out
}
