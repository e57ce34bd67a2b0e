package globals

// Certified validator assets with pinned weight digests. A node may only
// declare mining readiness with an asset from this catalog - the download and
// digest verification itself happens outside this subsystem.

type CertifiedAsset struct {
	Name        string `json:"name"`
	Sha256      string `json:"sha256"`
	MinVramGb   int    `json:"minVramGb"`
	MinRamGb    int    `json:"minRamGb"`
	MinCpuCores int    `json:"minCpuCores"`
}

var CERTIFIED_ASSETS = map[string]CertifiedAsset{
	"gemma-3-4b": {
		Name:        "Gemma 3 4B",
		Sha256:      "a1b2c3d4e5f6789012345678901234567890abcdef1234567890abcdef123456",
		MinVramGb:   4,
		MinRamGb:    8,
		MinCpuCores: 4,
	},
	"mistral-3b": {
		Name:        "Mistral 3B",
		Sha256:      "b2c3d4e5f6789012345678901234567890abcdef1234567890abcdef1234567a",
		MinVramGb:   3,
		MinRamGb:    6,
		MinCpuCores: 4,
	},
	"qwen-3-4b": {
		Name:        "Qwen 3 4B",
		Sha256:      "c3d4e5f6789012345678901234567890abcdef1234567890abcdef1234567ab2",
		MinVramGb:   4,
		MinRamGb:    8,
		MinCpuCores: 4,
	},
}

func IsCertifiedAsset(assetRef string) bool {

	_, ok := CERTIFIED_ASSETS[assetRef]

	return ok
}
