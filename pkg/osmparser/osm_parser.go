package osmparser

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lintang-b-s/navigatorx-pg/pkg/datastructure"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
)

// OsmParser reads a road network straight from an OpenStreetMap extract, either .osm.pbf or
// .osm XML. It has no way length table, so every way length is computed during the build.
type OsmParser struct {
	mapFile string
	procs   int
	logger  *zap.Logger
}

func NewOsmParser(mapFile string, procs int, logger *zap.Logger) *OsmParser {
	return &OsmParser{
		mapFile: mapFile,
		procs:   procs,
		logger:  logger,
	}
}

func (p *OsmParser) isXML() bool {
	return strings.HasSuffix(p.mapFile, ".osm") || strings.HasSuffix(p.mapFile, ".xml")
}

func (p *OsmParser) Name() string {
	if p.isXML() {
		return "osm:" + p.mapFile
	}
	return "pbf:" + p.mapFile
}

// newScanner opens one pass over r. The pbf decoder skips the element kinds the pass ignores.
func (p *OsmParser) newScanner(ctx context.Context, r io.Reader, wantNodes bool) osm.Scanner {
	if p.isXML() {
		return osmxml.New(ctx, r)
	}
	scanner := osmpbf.New(ctx, r, p.procs)
	scanner.SkipNodes = !wantNodes
	scanner.SkipWays = wantNodes
	scanner.SkipRelations = true
	return scanner
}

// Load scans the file twice: ways first, then only the nodes those ways reference.
func (p *OsmParser) Load(ctx context.Context) (*datastructure.Network, error) {
	f, err := os.Open(p.mapFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ways, wayNodes, err := p.scanWays(p.newScanner(ctx, f, false))
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	nodes, err := p.scanNodes(p.newScanner(ctx, f, true), wayNodes)
	if err != nil {
		return nil, err
	}

	p.logger.Info("openstreetmap extract scanned",
		zap.String("file", p.mapFile),
		zap.Int("ways", len(ways)),
		zap.Int("nodes", len(nodes)))
	return &datastructure.Network{Nodes: nodes, Ways: ways}, nil
}

func (p *OsmParser) scanWays(scanner osm.Scanner) ([]datastructure.Way, map[int64]struct{}, error) {
	defer scanner.Close()

	ways := make([]datastructure.Way, 0)
	wayNodes := make(map[int64]struct{})
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		// only ways that carry a highway tag can become routable
		if way.Tags.Find("highway") == "" {
			continue
		}
		if (len(ways)+1)%50000 == 0 {
			p.logger.Sugar().Infof("scanning openstreetmap ways: %d...", len(ways)+1)
		}

		nodeIDs := make([]int64, 0, len(way.Nodes))
		for _, n := range way.Nodes {
			nodeIDs = append(nodeIDs, int64(n.ID))
			wayNodes[int64(n.ID)] = struct{}{}
		}
		ways = append(ways, datastructure.NewWay(int64(way.ID), nodeIDs, way.Tags.Map()))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan ways: %w", err)
	}
	return ways, wayNodes, nil
}

func (p *OsmParser) scanNodes(scanner osm.Scanner, wanted map[int64]struct{}) ([]datastructure.Node, error) {
	defer scanner.Close()

	nodes := make([]datastructure.Node, 0, len(wanted))
	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, ok := wanted[int64(node.ID)]; !ok {
			continue
		}
		nodes = append(nodes, datastructure.NewNode(int64(node.ID), node.Lat, node.Lon))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan nodes: %w", err)
	}
	return nodes, nil
}
