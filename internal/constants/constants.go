package constants

// Tool name and related constants
const (
	// ToolName is the name of this tool
	ToolName = "jsinspect"

	// ConfigFileName is the default config file name
	ConfigFileName = ".jsinspect.yaml"

	// EnvVarPrefix is the prefix for environment variables
	EnvVarPrefix = "JSINSPECT"
)

// ConfigFileCandidates are the file names searched during config discovery
var ConfigFileCandidates = []string{
	".jsinspect.yaml",
	".jsinspect.yml",
	"jsinspect.yaml",
	"jsinspect.yml",
	".jsinspect.toml",
	"jsinspect.json",
}

// Output format constants
const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)

// Supported source file extensions
var (
	JavaScriptExtensions = []string{".js", ".jsx", ".mjs", ".cjs"}
	TypeScriptExtensions = []string{".ts", ".tsx", ".mts", ".cts"}
)

// GeneratedMarker marks generated files in their header
const GeneratedMarker = "@generated"

// GeneratedHeaderBytes is how much of a file header is searched for GeneratedMarker
const GeneratedHeaderBytes = 1024
