package round

import (
	"courserush/config"
	"courserush/course"
)

// DrawBallot 从课程目录中无放回地抽取至多 n 个选项（n 不超过 MaxBallotSize）
func DrawBallot(catalog []string, n int, rng *course.Rand) []string {
	if len(catalog) == 0 {
		return nil
	}
	n = min(max(n, 1), config.MaxBallotSize)
	if n > len(catalog) {
		n = len(catalog)
	}
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(catalog))[:n] {
		out = append(out, catalog[i])
	}
	return out
}

// Count 统计每个选项的票数；不在选票上的选择不计入
func Count(ballot []string, votes map[string]string) map[string]int {
	counts := make(map[string]int, len(ballot))
	for _, opt := range ballot {
		counts[opt] = 0
	}
	for _, choice := range votes {
		if _, ok := counts[choice]; ok {
			counts[choice]++
		}
	}
	return counts
}

// Tally 票数严格最高者胜出；出现并列（包括无人投票）时在全部选项中均匀随机
func Tally(ballot []string, votes map[string]string, rng *course.Rand) string {
	if len(ballot) == 0 {
		return ""
	}
	counts := Count(ballot, votes)
	best, top, tied := "", -1, false
	for _, opt := range ballot {
		switch n := counts[opt]; {
		case n > top:
			best, top, tied = opt, n, false
		case n == top:
			tied = true
		}
	}
	if tied || top == 0 {
		return ballot[rng.Intn(len(ballot))]
	}
	return best
}
