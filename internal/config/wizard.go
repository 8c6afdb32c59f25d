package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard asks for the handful of settings that differ between
// deployments and saves the result to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to clinrag! Let's configure the report generator.")
	fmt.Println()

	cfg := DefaultConfig()

	providerPrompt := promptui.Select{
		Label: "Select generation provider",
		Items: []string{"google", "openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.Model = DefaultModels[cfg.Provider]
	cfg.EmbeddingProvider = cfg.Provider
	cfg.EmbeddingModel = DefaultEmbeddingModels[cfg.Provider]

	storePrompt := promptui.Select{
		Label: "Where is the DSM-5 document stored?",
		Items: []string{"drive", "gcs", "local"},
	}
	_, storeStr, err := storePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("file store selection: %w", err)
	}
	cfg.Retrieval.FileStore = FileStoreType(storeStr)

	folderLabel := map[FileStoreType]string{
		FileStoreDrive: "Drive folder ID",
		FileStoreGCS:   "Bucket (bucket or bucket/prefix)",
		FileStoreLocal: "Local directory",
	}[cfg.Retrieval.FileStore]
	folderPrompt := promptui.Prompt{
		Label:   folderLabel,
		Default: os.Getenv("DSM5_DRIVE_FOLDER_ID"),
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("a location is required")
			}
			return nil
		},
	}
	folder, err := folderPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("folder: %w", err)
	}
	cfg.Retrieval.Folder = strings.TrimSpace(folder)
	if cfg.Retrieval.FileStore == FileStoreLocal {
		cfg.Retrieval.Extractor = ExtractorPlain
	}

	memoryPrompt := promptui.Select{
		Label: "Long-term assistant memory",
		Items: []string{"chromem", "mem0", "none"},
	}
	_, memBackend, err := memoryPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("memory selection: %w", err)
	}
	cfg.Memory.Backend = memBackend
	cfg.Assistant.MemoryEnabled = memBackend != "none"

	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: set %s in your environment before generating reports.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
