package airquality

// Level is a coarse air quality rating derived from CO2 concentration
type Level string

const (
	Unknown   Level = ""
	Excellent Level = "excellent"
	Good      Level = "good"
	Fair      Level = "fair"
	Poor      Level = "poor"
)

// Classifier maps CO2 ppm to a Level with configurable thresholds
type Classifier struct {
	excellentBelow int
	goodBelow      int
	fairBelow      int
}

// NewClassifier creates a classifier. Each bound is the exclusive upper ppm of its level;
// anything at or above fairBelow is Poor.
func NewClassifier(excellentBelow, goodBelow, fairBelow int) *Classifier {
	return &Classifier{
		excellentBelow: excellentBelow,
		goodBelow:      goodBelow,
		fairBelow:      fairBelow,
	}
}

// Classify rates a CO2 reading. Non-positive values mean the sensor reported nothing.
func (c *Classifier) Classify(co2 int) Level {
	switch {
	case co2 <= 0:
		return Unknown
	case co2 < c.excellentBelow:
		return Excellent
	case co2 < c.goodBelow:
		return Good
	case co2 < c.fairBelow:
		return Fair
	default:
		return Poor
	}
}
