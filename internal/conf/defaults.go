// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "villrein")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/villrein.log")

	viper.SetDefault("input.posteriordir", "input/posterior/")
	viper.SetDefault("input.intervalfile", "input/posterior/intervals.csv")
	viper.SetDefault("input.harvestfile", "input/harvest.csv")
	viper.SetDefault("input.surveyfile", "input/minimum_counts.csv")

	viper.SetDefault("output.artifactdir", "output/")
	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "output/indicator.db")

	viper.SetDefault("years.start", 1991)
	viper.SetDefault("years.end", 2024)
	viper.SetDefault("years.assessment", []int{2000, 2010, 2014, 2019, 2024})

	viper.SetDefault("sampler.size", 1000)
	viper.SetDefault("sampler.coverage", 1.0)
	viper.SetDefault("sampler.replacement", false)
	viper.SetDefault("sampler.seed", uint64(42))

	viper.SetDefault("fit.rinit", 0.3)
	viper.SetDefault("fit.kinitfactor", 1.2)
	viper.SetDefault("fit.logcinit", -1.0)
	viper.SetDefault("fit.sigmaobs", 0.01)
	viper.SetDefault("fit.maxiterations", 2000)
	viper.SetDefault("fit.gradienttolerance", 1e-10)
	viper.SetDefault("fit.minpairs", 3)
	viper.SetDefault("fit.plausibilitycheck", false)
	viper.SetDefault("fit.workers", 0)

	viper.SetDefault("reference.minareas", 3)

	viper.SetDefault("survey.detectabilitymean", 0.85)
	viper.SetDefault("survey.detectabilitysd", 0.05)
}
