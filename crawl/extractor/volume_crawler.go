package extractor

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	goeval "github.com/edisonguo/govaluate"
	"github.com/nci/voxrgb/utils"
)

// VolumeInfo is the catalogue record of one volume file.
type VolumeInfo struct {
	ID       string                 `json:"id"`
	FilePath string                 `json:"file_path"`
	Size     int64                  `json:"file_size"`
	MTime    time.Time              `json:"mtime"`
	Geometry utils.Geometry         `json:"geometry"`
	Stats    map[string]interface{} `json:"stats,omitempty"`
	Window   *utils.Window          `json:"default_window,omitempty"`
}

// ExtractVolumeInfo reads the volume at filePath and summarises it,
// including the window the default proportion policy would choose.
func ExtractVolumeInfo(filePath string) (*VolumeInfo, error) {
	fStat, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}

	v, err := utils.ReadVolume(filePath)
	if err != nil {
		return nil, err
	}

	fileSignature := fmt.Sprintf("%s%d%d", filePath, fStat.Size(), fStat.ModTime().UnixNano())
	info := &VolumeInfo{
		ID:       fmt.Sprintf("%x", md5.Sum([]byte(fileSignature))),
		FilePath: filePath,
		Size:     fStat.Size(),
		MTime:    fStat.ModTime().UTC(),
		Geometry: v.Geom,
	}

	// empty and all-NaN volumes are still catalogued, without statistics
	if stats, err := utils.VolumeStats(v); err == nil {
		info.Stats = stats
	}
	if w, err := utils.ResolveWindow(utils.DefaultWindow(), v); err == nil {
		info.Window = &w
	}
	return info, nil
}

func parsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	validVariables := map[string]struct{}{"path": struct{}{}, "type": struct{}{}}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are path, type", varName)
			}
		}
	}
	return expr, nil
}

const DefaultMaxCrawlErrors = 1000

// VolumeCrawler walks a directory tree and extracts every .npy volume it
// finds, with at most conc directories read at once. Directories and files
// are offered to the optional pattern with variables path and type ("dir"
// or "file"); entries for which it evaluates to false are skipped.
type VolumeCrawler struct {
	Outputs    chan *VolumeInfo
	Error      chan error
	wg         sync.WaitGroup
	concLimit  chan struct{}
	outputDone chan struct{}
	pattern    *goeval.EvaluableExpression
	emit       func(*VolumeInfo)
}

func NewVolumeCrawler(conc int, pattern string, emit func(*VolumeInfo)) (*VolumeCrawler, error) {
	expr, err := parsePatternExpression(pattern)
	if err != nil {
		return nil, err
	}
	if conc <= 0 {
		conc = 1
	}
	return &VolumeCrawler{
		Outputs:    make(chan *VolumeInfo, 4096),
		Error:      make(chan error, 100),
		concLimit:  make(chan struct{}, conc),
		outputDone: make(chan struct{}, 1),
		pattern:    expr,
		emit:       emit,
	}, nil
}

func (vc *VolumeCrawler) Crawl(rootDir string) error {
	absRootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return err
	}

	go vc.outputResult()

	vc.wg.Add(1)
	vc.concLimit <- struct{}{}
	vc.crawlDir(absRootDir, false)
	vc.wg.Wait()

	close(vc.Outputs)
	<-vc.outputDone

	close(vc.Error)
	var errors []string
	for err := range vc.Error {
		errors = append(errors, err.Error())
		if len(errors) >= DefaultMaxCrawlErrors {
			errors = append(errors, " ... too many errors")
			break
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "\n"))
	}
	return nil
}

func (vc *VolumeCrawler) outputResult() {
	for info := range vc.Outputs {
		vc.emit(info)
	}
	vc.outputDone <- struct{}{}
}

func (vc *VolumeCrawler) reportError(err error) {
	select {
	case vc.Error <- err:
	default:
	}
}

func (vc *VolumeCrawler) crawlDir(currPath string, serialised bool) {
	defer vc.wg.Done()
	if !serialised {
		defer func() { <-vc.concLimit }()
	}

	entries, err := os.ReadDir(currPath)
	if err != nil {
		vc.reportError(fmt.Errorf("Could not read dir %s: %v", currPath, err))
		return
	}

	for _, ent := range entries {
		filePath := filepath.Join(currPath, ent.Name())
		isDir := ent.IsDir()
		if !isDir && !ent.Type().IsRegular() {
			continue
		}
		if !isDir && !strings.EqualFold(filepath.Ext(filePath), ".npy") {
			continue
		}

		if vc.pattern != nil {
			ok, err := vc.evaluatePatternExpression(filePath, isDir)
			if err != nil {
				vc.reportError(err)
				continue
			}
			if !ok {
				continue
			}
		}

		if isDir {
			vc.wg.Add(1)
			select {
			case vc.concLimit <- struct{}{}:
				go vc.crawlDir(filePath, false)
			default:
				vc.crawlDir(filePath, true)
			}
			continue
		}

		info, err := ExtractVolumeInfo(filePath)
		if err != nil {
			vc.reportError(err)
			continue
		}
		vc.Outputs <- info
	}
}

func (vc *VolumeCrawler) evaluatePatternExpression(filePath string, isDir bool) (bool, error) {
	fileType := "file"
	if isDir {
		fileType = "dir"
	}
	params := map[string]interface{}{"path": filePath, "type": fileType}

	result, err := vc.pattern.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("pattern evaluation error for %s: %v", filePath, err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("pattern must evaluate to a boolean, got %v", result)
	}
	return ok, nil
}
