package friction

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/reachmap/access-cli/internal/engine"
)

// roadTiers splits road features into the three speed classes by route type
// (GP_RTP): 1–2 major, 3–4 medium, 5 minor. Unknown types are ignored.
type roadTiers struct {
	Major  []*geom.LineString
	Medium []*geom.LineString
	Minor  []*geom.LineString
}

func (rt roadTiers) total() int {
	return len(rt.Major) + len(rt.Medium) + len(rt.Minor)
}

func classifyRoads(features []engine.RoadFeature) roadTiers {
	var rt roadTiers
	for _, f := range features {
		if f.Line == nil {
			continue
		}
		switch f.RouteType {
		case 1, 2:
			rt.Major = append(rt.Major, f.Line)
		case 3, 4:
			rt.Medium = append(rt.Medium, f.Line)
		case 5:
			rt.Minor = append(rt.Minor, f.Line)
		}
	}
	return rt
}

// roadProbeSimplifyM coarsens the boundary before intersection probes;
// dataset selection does not need exact coastlines.
const roadProbeSimplifyM = 1000

// findRoads probes the configured regional datasets in order and returns the
// features of the first one that intersects the boundary. All-misses is not
// an error: the analysis degrades to off-road speeds.
func (b *Builder) findRoads(ctx context.Context, bd *engine.Boundary) ([]engine.RoadFeature, string, error) {
	probe := bd.Simplify(roadProbeSimplifyM)
	for _, dataset := range b.cfg.RoadDatasets {
		features, err := b.eng.Roads(ctx, dataset, probe)
		if err != nil {
			if eris.Is(err, engine.ErrNoRoadData) {
				zap.L().Debug("road dataset miss",
					zap.String("country", bd.Name),
					zap.String("dataset", dataset),
				)
				continue
			}
			return nil, "", eris.Wrapf(err, "friction: roads %q", dataset)
		}
		zap.L().Info("road dataset selected",
			zap.String("country", bd.Name),
			zap.String("dataset", dataset),
			zap.Int("features", len(features)),
		)
		return features, dataset, nil
	}

	zap.L().Warn("no road dataset intersects boundary, using off-road speeds only",
		zap.String("country", bd.Name),
	)
	return nil, "", nil
}
