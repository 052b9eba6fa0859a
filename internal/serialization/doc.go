// Package serialization saves and loads model state dictionaries in the
// SafeTensors format:
//
//	[8 bytes: header size N (uint64 LE)]
//	[N bytes: JSON header, name -> {dtype, shape, data_offsets}]
//	[tensor data: raw little-endian bytes, in header order]
//
// An optional "__metadata__" entry of the header carries string metadata
// such as the model configuration or the best evaluation loss.
//
// Example usage:
//
//	// Save the best snapshot
//	err := serialization.WriteFile("run_best.safetensors", result.BestModel,
//	    map[string]string{"eval_loss": "5.31"})
//
//	// Load it into a network
//	f, err := serialization.ReadFile("run_best.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = net.LoadStateDict(f.Tensors)
package serialization
