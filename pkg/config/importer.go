package config

import (
	"github.com/spf13/viper"

	"ufsvault/pkg/ingester"
	"ufsvault/pkg/layout"
	"ufsvault/pkg/unixfs"
)

func setImporterDefaults() {
	d := ingester.DefaultOptions()
	viper.SetDefault("importer.strategy", d.Strategy.String())
	viper.SetDefault("importer.chunker", d.Chunker)
	viper.SetDefault("importer.max_children", d.MaxChildrenPerNode)
	viper.SetDefault("importer.layer_repeat", d.LayerRepeat)
	viper.SetDefault("importer.raw_leaves", d.RawLeaves)
	viper.SetDefault("importer.leaf_type", d.LeafType.String())
	viper.SetDefault("importer.reduce_single_leaf", d.ReduceSingleLeafToSelf)
	viper.SetDefault("importer.cid_version", d.CidVersion)
	viper.SetDefault("importer.hash", d.HashAlg)
	viper.SetDefault("importer.concurrency", d.BlockWriteConcurrency)
	viper.SetDefault("importer.only_hash", d.OnlyHash)
	viper.SetDefault("importer.wrap", d.WrapWithDirectory)
}

// ImporterOptions 从配置组装导入参数，所有非法项一次性报告
func ImporterOptions() (ingester.Options, error) {
	opts := ingester.DefaultOptions()

	var errs []error
	strategy, err := layout.ParseStrategy(viper.GetString("importer.strategy"))
	if err != nil {
		errs = append(errs, err)
	}
	leafType, err := unixfs.ParseType(viper.GetString("importer.leaf_type"))
	if err != nil {
		errs = append(errs, err)
	}

	opts.Strategy = strategy
	opts.LeafType = leafType
	opts.Chunker = viper.GetString("importer.chunker")
	opts.MaxChildrenPerNode = viper.GetInt("importer.max_children")
	opts.LayerRepeat = viper.GetInt("importer.layer_repeat")
	opts.RawLeaves = viper.GetBool("importer.raw_leaves")
	opts.ReduceSingleLeafToSelf = viper.GetBool("importer.reduce_single_leaf")
	opts.CidVersion = viper.GetInt("importer.cid_version")
	opts.HashAlg = viper.GetString("importer.hash")
	opts.BlockWriteConcurrency = viper.GetInt("importer.concurrency")
	opts.OnlyHash = viper.GetBool("importer.only_hash")
	opts.WrapWithDirectory = viper.GetBool("importer.wrap")

	return opts, joinErrors(append(errs, opts.Validate())...)
}
