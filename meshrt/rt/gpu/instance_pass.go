package gpu

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/instancing"
	"github.com/gekko3d/instancing/meshrt/rt/core"
	"github.com/gekko3d/instancing/meshrt/rt/shaders"
	"github.com/go-gl/mathgl/mgl32"
)

// MeshInstance matches the WGSL instance attributes
type MeshInstance struct {
	ModelMat mgl32.Mat4
	Params   [4]float32
}

// CameraUniform matches the WGSL Camera struct
type CameraUniform struct {
	ViewProj mgl32.Mat4
	LightDir [4]float32
}

const cameraUniformSize = 256

type gpuMesh struct {
	vertexBuffer *wgpu.Buffer
	indexBuffer  *wgpu.Buffer
	firstIndex   []uint32
	indexCount   []uint32
}

type gpuMaterial struct {
	buffer    *wgpu.Buffer
	bindGroup *wgpu.BindGroup
	color     [4]float32
}

// MeshInstancePass draws instanced meshes inside a caller-owned render pass.
// Instance data goes into a ring of fixed-size slots, one slot per distinct
// transform buffer per frame.
type MeshInstancePass struct {
	Device          *wgpu.Device
	Queue           *wgpu.Queue
	Pipeline        *wgpu.RenderPipeline
	CameraBuffer    *wgpu.Buffer
	CameraBindGroup *wgpu.BindGroup
	InstanceBuffer  *wgpu.Buffer
	Slots           int
	Logger          instancing.Logger

	meshes    map[core.MeshId]*gpuMesh
	materials map[core.MaterialId]*gpuMaterial

	pass      *wgpu.RenderPassEncoder
	usedSlots int
	lastData  *mgl32.Mat4
	lastCount int
	lastSlot  int
	staging   []MeshInstance
}

var _ instancing.Dispatcher = (*MeshInstancePass)(nil)

func slotBytes() uint64 {
	return uint64(core.MaxInstancesPerDraw) * uint64(unsafe.Sizeof(MeshInstance{}))
}

func NewMeshInstancePass(device *wgpu.Device, format wgpu.TextureFormat, slots int) (*MeshInstancePass, error) {
	if slots <= 0 {
		slots = 8
	}

	shaderModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "InstancedMeshShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.InstancedMeshWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("instanced mesh shader: %w", err)
	}

	cameraBgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "InstancedMeshCameraBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uint64(unsafe.Sizeof(CameraUniform{})),
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	materialBgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "InstancedMeshMaterialBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: 16,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{cameraBgl, materialBgl},
	})
	if err != nil {
		return nil, err
	}

	instanceAttrs := make([]wgpu.VertexAttribute, 0, 5)
	for i := 0; i < 5; i++ {
		instanceAttrs = append(instanceAttrs, wgpu.VertexAttribute{
			Format:         wgpu.VertexFormatFloat32x4,
			Offset:         uint64(i * 16),
			ShaderLocation: uint32(2 + i),
		})
	}

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "InstancedMeshPipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(unsafe.Sizeof(core.Vertex{})),
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					},
				},
				{
					ArrayStride: uint64(unsafe.Sizeof(MeshInstance{})),
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes:  instanceAttrs,
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorSrcAlpha,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
						Alpha: wgpu.BlendComponent{
							Operation: wgpu.BlendOperationAdd,
							SrcFactor: wgpu.BlendFactorOne,
							DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						},
					},
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		// No depth attachment: blended instances rely on the batch depth order.
		DepthStencil: nil,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}

	p := &MeshInstancePass{
		Device:    device,
		Queue:     device.GetQueue(),
		Pipeline:  pipeline,
		Slots:     slots,
		Logger:    instancing.NewNopLogger(),
		meshes:    make(map[core.MeshId]*gpuMesh),
		materials: make(map[core.MaterialId]*gpuMaterial),
		staging:   make([]MeshInstance, core.MaxInstancesPerDraw),
	}

	p.CameraBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "InstancedMeshCamera",
		Size:  cameraUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	p.CameraBindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "InstancedMeshCameraBG",
		Layout: pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: p.CameraBuffer, Size: cameraUniformSize},
		},
	})
	if err != nil {
		return nil, err
	}

	p.InstanceBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "InstancedMeshInstances",
		Size:  slotBytes() * uint64(slots),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (p *MeshInstancePass) UpdateCamera(viewProj mgl32.Mat4, lightDir mgl32.Vec3) {
	u := CameraUniform{ViewProj: viewProj, LightDir: [4]float32{lightDir[0], lightDir[1], lightDir[2], 0}}
	p.Queue.WriteBuffer(p.CameraBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&u)), unsafe.Sizeof(u)))
}

// Begin makes pass the target of following DrawInstanced calls and
// recycles every instance slot.
func (p *MeshInstancePass) Begin(pass *wgpu.RenderPassEncoder) {
	p.pass = pass
	p.usedSlots = 0
	p.lastData = nil
	p.lastCount = 0

	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.CameraBindGroup, nil)
}

func (p *MeshInstancePass) End() {
	p.pass = nil
}

func (p *MeshInstancePass) uploadMesh(mesh *core.Mesh) (*gpuMesh, error) {
	if gm, ok := p.meshes[mesh.ID]; ok {
		return gm, nil
	}
	if len(mesh.Vertices) == 0 {
		return nil, fmt.Errorf("mesh %q has no vertices", mesh.Name)
	}

	gm := &gpuMesh{}
	var indices []uint32
	for _, sm := range mesh.SubMeshes {
		gm.firstIndex = append(gm.firstIndex, uint32(len(indices)))
		gm.indexCount = append(gm.indexCount, uint32(len(sm.Indices)))
		indices = append(indices, sm.Indices...)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("mesh %q has no indices", mesh.Name)
	}

	vSize := uint64(len(mesh.Vertices) * int(unsafe.Sizeof(core.Vertex{})))
	var err error
	gm.vertexBuffer, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: mesh.Name + " VB",
		Size:  vSize,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	p.Queue.WriteBuffer(gm.vertexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&mesh.Vertices[0])), vSize))

	// Index writes must be 4-byte aligned, which uint32 indices always are.
	iSize := uint64(len(indices) * 4)
	gm.indexBuffer, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: mesh.Name + " IB",
		Size:  iSize,
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		gm.vertexBuffer.Release()
		return nil, err
	}
	p.Queue.WriteBuffer(gm.indexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), iSize))

	p.meshes[mesh.ID] = gm
	return gm, nil
}

func (p *MeshInstancePass) material(m *core.Material) (*gpuMaterial, error) {
	gm, ok := p.materials[m.ID]
	if !ok {
		buf, err := p.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: m.Name + " Material",
			Size:  16,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		bg, err := p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   m.Name + " MaterialBG",
			Layout:  p.Pipeline.GetBindGroupLayout(1),
			Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: buf, Size: 16}},
		})
		if err != nil {
			buf.Release()
			return nil, err
		}
		gm = &gpuMaterial{buffer: buf, bindGroup: bg}
		p.materials[m.ID] = gm
		gm.color = [4]float32{-1, -1, -1, -1}
	}
	if gm.color != m.Color {
		gm.color = m.Color
		p.Queue.WriteBuffer(gm.buffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&gm.color[0])), 16))
	}
	return gm, nil
}

// uploadInstances returns the slot holding transforms, reusing the
// previous slot when the same buffer is drawn again for another submesh.
func (p *MeshInstancePass) uploadInstances(transforms []mgl32.Mat4, count int, props *core.PropertyBlock) (int, bool) {
	if p.lastData == &transforms[0] && p.lastCount == count {
		return p.lastSlot, true
	}
	if p.usedSlots >= p.Slots {
		return 0, false
	}

	params := props.Vectors(core.InstanceParamsProperty)
	for i := 0; i < count; i++ {
		inst := MeshInstance{ModelMat: transforms[i]}
		if i < len(params) {
			inst.Params = params[i]
		}
		p.staging[i] = inst
	}

	slot := p.usedSlots
	p.usedSlots++
	size := uint64(count) * uint64(unsafe.Sizeof(MeshInstance{}))
	p.Queue.WriteBuffer(p.InstanceBuffer, uint64(slot)*slotBytes(), unsafe.Slice((*byte)(unsafe.Pointer(&p.staging[0])), size))

	p.lastData = &transforms[0]
	p.lastCount = count
	p.lastSlot = slot
	return slot, true
}

// DrawInstanced records one instanced draw of a submesh into the current pass.
func (p *MeshInstancePass) DrawInstanced(mesh *core.Mesh, submesh int, material *core.Material, transforms []mgl32.Mat4, count int, props *core.PropertyBlock, shadows core.ShadowCastingMode) {
	count = min(count, len(transforms), core.MaxInstancesPerDraw)
	if p.pass == nil || mesh == nil || material == nil || count <= 0 {
		return
	}
	if shadows == core.ShadowsOnly {
		// Nothing visible to draw without a shadow pass.
		return
	}

	gm, err := p.uploadMesh(mesh)
	if err != nil {
		p.Logger.Warnf("instanced draw skipped: %v", err)
		return
	}
	if submesh < 0 || submesh >= len(gm.indexCount) || gm.indexCount[submesh] == 0 {
		return
	}
	mat, err := p.material(material)
	if err != nil {
		p.Logger.Warnf("instanced draw skipped: material %q: %v", material.Name, err)
		return
	}
	slot, ok := p.uploadInstances(transforms, count, props)
	if !ok {
		p.Logger.Warnf("instanced draw skipped: all %d instance slots used this frame", p.Slots)
		return
	}

	p.pass.SetBindGroup(1, mat.bindGroup, nil)
	p.pass.SetVertexBuffer(0, gm.vertexBuffer, 0, wgpu.WholeSize)
	p.pass.SetVertexBuffer(1, p.InstanceBuffer, uint64(slot)*slotBytes(), slotBytes())
	p.pass.SetIndexBuffer(gm.indexBuffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	p.pass.DrawIndexed(gm.indexCount[submesh], uint32(count), gm.firstIndex[submesh], 0, 0)
}

func (p *MeshInstancePass) Release() {
	for id, gm := range p.meshes {
		gm.vertexBuffer.Release()
		gm.indexBuffer.Release()
		delete(p.meshes, id)
	}
	for id, gm := range p.materials {
		gm.bindGroup.Release()
		gm.buffer.Release()
		delete(p.materials, id)
	}
	if p.InstanceBuffer != nil {
		p.InstanceBuffer.Release()
	}
	if p.CameraBuffer != nil {
		p.CameraBuffer.Release()
	}
}
