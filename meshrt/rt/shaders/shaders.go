package shaders

import (
	_ "embed"
)

//go:embed instanced_mesh.wgsl
var InstancedMeshWGSL string
