package quality

import "maps"

// Clone returns a deep copy of r. Details payloads and check options are
// copied too, so the clone shares no mutable state with r.
func (r CheckResult) Clone() CheckResult {
	out := r
	if r.Issues != nil {
		out.Issues = make([]Issue, len(r.Issues))
		for i, is := range r.Issues {
			is.Rows = cloneInts(is.Rows)
			out.Issues[i] = is
		}
	}
	out.Notes = cloneStrings(r.Notes)
	out.Config = cloneConfig(r.Config)
	out.Details = cloneDetails(r.Details)
	return out
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	return append([]int(nil), s...)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneConfig(c any) any {
	switch o := c.(type) {
	case MissingOptions:
		o.Columns = cloneStrings(o.Columns)
		return o
	case OutlierOptions:
		o.Columns = cloneStrings(o.Columns)
		return o
	case DuplicateOptions:
		o.Columns = cloneStrings(o.Columns)
		return o
	case FormatOptions:
		if o.Rules != nil {
			o.Rules = maps.Clone(o.Rules)
		}
		return o
	case DistributionOptions:
		o.Columns = cloneStrings(o.Columns)
		return o
	}
	return c
}

func cloneDetails(d any) any {
	switch det := d.(type) {
	case *MissingDetails:
		if det == nil {
			return det
		}
		c := *det
		c.Columns = append([]ColumnMissing(nil), det.Columns...)
		return &c
	case *OutlierDetails:
		if det == nil {
			return det
		}
		c := *det
		if det.Columns != nil {
			c.Columns = make([]ColumnOutliers, len(det.Columns))
			for i, col := range det.Columns {
				col.Rows = cloneInts(col.Rows)
				c.Columns[i] = col
			}
		}
		c.Rows = cloneInts(det.Rows)
		if det.Scores != nil {
			c.Scores = append([]float64(nil), det.Scores...)
		}
		return &c
	case *DuplicateDetails:
		if det == nil {
			return det
		}
		c := *det
		c.Columns = cloneStrings(det.Columns)
		if det.Clusters != nil {
			c.Clusters = make([][]int, len(det.Clusters))
			for i, cl := range det.Clusters {
				c.Clusters[i] = cloneInts(cl)
			}
		}
		return &c
	case *FormatDetails:
		if det == nil {
			return det
		}
		c := *det
		if det.Columns != nil {
			c.Columns = make([]ColumnFormat, len(det.Columns))
			for i, col := range det.Columns {
				col.Failing = cloneInts(col.Failing)
				c.Columns[i] = col
			}
		}
		return &c
	case *BalanceDetails:
		if det == nil {
			return det
		}
		c := *det
		c.Classes = append([]ClassCount(nil), det.Classes...)
		return &c
	case *DistributionDetails:
		if det == nil {
			return det
		}
		c := *det
		c.Columns = append([]ColumnSkew(nil), det.Columns...)
		return &c
	}
	return d
}
