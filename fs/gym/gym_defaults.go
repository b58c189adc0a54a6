// gym_defaults.go - Standardwerte der GraphGym- und GraphGPS-Konfiguration
package gym

// Default gibt eine Konfiguration mit den Standardwerten zurueck. Jeder
// Aufruf liefert eine neue Map.
func Default() KV {
	kv := KV{
		"seed": 0,

		"model.type":          "MultiModel",
		"model.graph_pooling": "mean",

		"share.dim_in":  1,
		"share.dim_out": 1,

		"train.batch_size": 32,

		"dataset.node_encoder":           false,
		"dataset.node_encoder_name":      "LinearNode",
		"dataset.node_encoder_num_types": 0,
		"dataset.node_encoder_bn":        true,
		"dataset.edge_encoder":           false,
		"dataset.edge_encoder_name":      "LinearEdge",
		"dataset.edge_encoder_num_types": 0,
		"dataset.edge_encoder_bn":        true,
		"dataset.edge_dim":               1,

		"gnn.head":           "graph",
		"gnn.layers_pre_mp":  0,
		"gnn.layers_post_mp": 1,
		"gnn.dim_inner":      64,
		"gnn.act":            "relu",
		"gnn.batchnorm":      true,
		"gnn.dropout":        0.0,
		"gnn.residual":       true,

		"gt.layer_type":   "CustomGatedGCN+Transformer",
		"gt.layers":       3,
		"gt.n_heads":      8,
		"gt.dim_hidden":   64,
		"gt.dim_edge":     nil,
		"gt.dropout":      0.0,
		"gt.attn_dropout": 0.0,
		"gt.layer_norm":   false,
		"gt.batch_norm":   true,

		"prep.exp":                      false,
		"prep.exp_deg":                  4,
		"prep.exp_algorithm":            "Random-d",
		"prep.use_exp_edges":            true,
		"prep.add_edge_index":           true,
		"prep.num_virt_node":            0,
		"prep.random_walks.walk_length": 16,
		"prep.random_walks.num_walks":   64,

		"posenc_RRWPE.enable":        false,
		"posenc_RRWPE.ksteps":        21,
		"posenc_RRWPE.add_identity":  true,
		"posenc_RRWPE.spd":           false,
		"posenc_RRWPE.full_graph":    false,
		"posenc_RRWPE.pad_value":     0.0,
		"posenc_RRWPE.raw_norm_type": "none",

		"posenc_ARRWPE.enable":        false,
		"posenc_ARRWPE.window_size":   nil,
		"posenc_ARRWPE.dim_reduction": nil,
		"posenc_ARRWPE.dim_reduced":   8,
		"posenc_ARRWPE.raw_norm_type": "none",

		"posenc_ARWPE.enable":        false,
		"posenc_ARWPE.window_size":   nil,
		"posenc_ARWPE.raw_norm_type": "none",

		"posenc_ARWSE.enable":        false,
		"posenc_ARWSE.window_size":   nil,
		"posenc_ARWSE.raw_norm_type": "none",

		"posenc_RWSE.enable":            false,
		"posenc_RWSE.kernel.times":      []any{},
		"posenc_RWSE.kernel.times_func": "",
		"posenc_RWSE.raw_norm_type":     "none",

		"posenc_RWPE.enable":            false,
		"posenc_RWPE.kernel.times":      []any{},
		"posenc_RWPE.kernel.times_func": "",
		"posenc_RWPE.raw_norm_type":     "none",

		"posenc_ERE.enable":   false,
		"posenc_ERE.dim_pe":   8,
		"posenc_ERE.accuracy": 0.1,
	}
	return kv
}
