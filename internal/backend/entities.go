package backend

// Collection paths on the upstream API.
const (
	PathDepartments     = "/api/v1/departments"
	PathStudyPrograms   = "/api/v1/study-programs"
	PathPositions       = "/api/v1/positions"
	PathEmployeeClasses = "/api/v1/employee-classes"
	PathActivities      = "/api/v1/activities"
	PathLeaveQuotas     = "/api/v1/leave-quotas"
	PathEmploymentBonds = "/api/v1/employment-bonds"
	PathEmployees       = "/api/v1/employees"
	PathServices        = "/api/v1/services"
)

// Timestamps shared by every record.
type Timestamps struct {
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	DeletedAt *string `json:"deleted_at,omitempty"`
}

// Department is an organisational unit.
type Department struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Alias    string  `json:"alias"`
	MajorID  *string `json:"major_id,omitempty"`
	IsActive bool    `json:"is_active"`
	SysCode  string  `json:"sys_code"`
	Timestamps
}

// DepartmentPayload creates or updates a Department.
type DepartmentPayload struct {
	Name     string  `json:"name" validate:"required,max=150"`
	Alias    string  `json:"alias" validate:"required,max=50"`
	MajorID  *string `json:"major_id,omitempty"`
	IsActive bool    `json:"is_active"`
	SysCode  string  `json:"sys_code" validate:"required,max=50"`
}

// StudyProgram is an academic study programme.
type StudyProgram struct {
	ID                string  `json:"id"`
	KodeProdi         string  `json:"kode_prodi"`
	NamaProdi         string  `json:"nama_prodi"`
	AliasProdi        string  `json:"alias_prodi"`
	JenjangPendidikan string  `json:"jenjang_pendidikan"`
	NamaJurusan       string  `json:"nama_jurusan"`
	AliasJurusan      *string `json:"alias_jurusan,omitempty"`
	StatusProdi       string  `json:"status_prodi"`
	Timestamps
}

// StudyProgramPayload creates or updates a StudyProgram.
type StudyProgramPayload struct {
	KodeProdi         string  `json:"kode_prodi" validate:"required"`
	NamaProdi         string  `json:"nama_prodi" validate:"required"`
	AliasProdi        string  `json:"alias_prodi" validate:"required"`
	JenjangPendidikan string  `json:"jenjang_pendidikan" validate:"required"`
	NamaJurusan       string  `json:"nama_jurusan" validate:"required"`
	AliasJurusan      *string `json:"alias_jurusan,omitempty"`
	StatusProdi       string  `json:"status_prodi,omitempty"`
}

// Position is a job position.
type Position struct {
	ID          string `json:"id"`
	NamaPosisi  string `json:"nama_posisi"`
	AliasPosisi string `json:"alias_posisi"`
	IsActive    bool   `json:"is_active"`
	SysCode     string `json:"sys_code"`
	Timestamps
}

// PositionPayload creates or updates a Position.
type PositionPayload struct {
	NamaPosisi  string `json:"nama_posisi" validate:"required"`
	AliasPosisi string `json:"alias_posisi" validate:"required"`
	IsActive    bool   `json:"is_active"`
	SysCode     string `json:"sys_code" validate:"required"`
}

// EmployeeClass is an employee grade.
type EmployeeClass struct {
	ID            string `json:"id"`
	KelasPegawai  string `json:"kelas_pegawai"`
	RefJumlahCuti *int   `json:"ref_jumlah_cuti,omitempty"`
	IsLembur      bool   `json:"is_lembur"`
	Timestamps
}

// EmployeeClassPayload creates or updates an EmployeeClass.
type EmployeeClassPayload struct {
	KelasPegawai  string `json:"kelas_pegawai" validate:"required"`
	RefJumlahCuti *int   `json:"ref_jumlah_cuti,omitempty" validate:"omitempty,gte=0"`
	IsLembur      bool   `json:"is_lembur"`
}

// Activity is an activity employees can be linked to.
type Activity struct {
	ID              string `json:"id"`
	KodeAktivitas   string `json:"kode_aktivitas"`
	NamaAktivitas   string `json:"nama_aktivitas"`
	StatusAktivitas string `json:"status_aktivitas"`
	IsActive        bool   `json:"is_active"`
	Timestamps
}

// ActivityPayload creates or updates an Activity.
type ActivityPayload struct {
	KodeAktivitas   string `json:"kode_aktivitas" validate:"required"`
	NamaAktivitas   string `json:"nama_aktivitas" validate:"required"`
	StatusAktivitas string `json:"status_aktivitas" validate:"oneof=active inactive"`
	IsActive        bool   `json:"is_active"`
}

// LeaveQuota is a leave allowance variant.
type LeaveQuota struct {
	ID         string  `json:"id"`
	JumlahCuti int     `json:"jumlah_cuti"`
	Keterangan *string `json:"keterangan,omitempty"`
	Timestamps
}

// LeaveQuotaPayload creates or updates a LeaveQuota.
type LeaveQuotaPayload struct {
	JumlahCuti int     `json:"jumlah_cuti" validate:"gte=0"`
	Keterangan *string `json:"keterangan,omitempty"`
}

// EmploymentBond is a type of employment contract.
type EmploymentBond struct {
	ID              string `json:"id"`
	KodeIkatanKerja string `json:"kode_ikatan_kerja"`
	NamaIkatanKerja string `json:"nama_ikatan_kerja"`
	Organisasi      string `json:"organisasi"`
	IsActive        bool   `json:"is_active"`
	SysCode         string `json:"sys_code"`
	Timestamps
}

// EmploymentBondPayload creates or updates an EmploymentBond.
type EmploymentBondPayload struct {
	KodeIkatanKerja string `json:"kode_ikatan_kerja" validate:"required"`
	NamaIkatanKerja string `json:"nama_ikatan_kerja" validate:"required"`
	Organisasi      string `json:"organisasi" validate:"required"`
	IsActive        bool   `json:"is_active"`
	SysCode         string `json:"sys_code" validate:"required"`
}

// Employee is a staff member.
type Employee struct {
	ID             string  `json:"id"`
	NIP            string  `json:"nip"`
	Inisial        string  `json:"inisial"`
	NamaDisplay    string  `json:"nama_display"`
	TitlePrefix    *string `json:"title_prefix,omitempty"`
	TitleSuffix    *string `json:"title_suffix,omitempty"`
	ProgramStudiID string  `json:"program_studi_id"`
	DepartmentID   string  `json:"department_id"`
	PositionID     string  `json:"position_id"`
	Timestamps
}

// EmployeePayload creates or updates an Employee.
type EmployeePayload struct {
	NIP            string  `json:"nip" validate:"required"`
	Inisial        string  `json:"inisial" validate:"required"`
	NamaDisplay    string  `json:"nama_display" validate:"required"`
	TitlePrefix    *string `json:"title_prefix,omitempty"`
	TitleSuffix    *string `json:"title_suffix,omitempty"`
	ProgramStudiID string  `json:"program_studi_id" validate:"required"`
	DepartmentID   string  `json:"department_id" validate:"required"`
	PositionID     string  `json:"position_id" validate:"required"`
}

// Employee list filters.
const (
	FilterProgramStudiID = "program_studi_id"
	FilterDepartmentID   = "department_id"
	FilterPositionID     = "position_id"
)

// Service is a requestable service.
type Service struct {
	ID             string `json:"id"`
	SysCode        string `json:"sys_code"`
	Name           string `json:"name"`
	DepartmentID   string `json:"department_id"`
	RequesterScope string `json:"requester_scope"`
	Description    string `json:"description"`
	IsActive       bool   `json:"is_active"`
	Timestamps
}

// ServicePayload creates or updates a Service.
type ServicePayload struct {
	SysCode        string `json:"sys_code" validate:"required"`
	Name           string `json:"name" validate:"required"`
	DepartmentID   string `json:"department_id" validate:"required"`
	RequesterScope string `json:"requester_scope" validate:"required"`
	Description    string `json:"description"`
	IsActive       bool   `json:"is_active"`
}

// Resources groups every collection served by the upstream.
type Resources struct {
	Departments     Resource[Department, DepartmentPayload]
	StudyPrograms   Resource[StudyProgram, StudyProgramPayload]
	Positions       Resource[Position, PositionPayload]
	EmployeeClasses Resource[EmployeeClass, EmployeeClassPayload]
	Activities      Resource[Activity, ActivityPayload]
	LeaveQuotas     Resource[LeaveQuota, LeaveQuotaPayload]
	EmploymentBonds Resource[EmploymentBond, EmploymentBondPayload]
	Employees       Resource[Employee, EmployeePayload]
	Services        Resource[Service, ServicePayload]
}

// NewResources binds every collection to client. masterBaseURL serves the
// master listings of departments, positions and study programs.
func NewResources(client *Client, masterBaseURL string) Resources {
	return Resources{
		Departments:     NewResource[Department, DepartmentPayload](client, PathDepartments, masterBaseURL),
		StudyPrograms:   NewResource[StudyProgram, StudyProgramPayload](client, PathStudyPrograms, masterBaseURL),
		Positions:       NewResource[Position, PositionPayload](client, PathPositions, masterBaseURL),
		EmployeeClasses: NewResource[EmployeeClass, EmployeeClassPayload](client, PathEmployeeClasses, ""),
		Activities:      NewResource[Activity, ActivityPayload](client, PathActivities, ""),
		LeaveQuotas:     NewResource[LeaveQuota, LeaveQuotaPayload](client, PathLeaveQuotas, ""),
		EmploymentBonds: NewResource[EmploymentBond, EmploymentBondPayload](client, PathEmploymentBonds, ""),
		Employees:       NewResource[Employee, EmployeePayload](client, PathEmployees, ""),
		Services:        NewResource[Service, ServicePayload](client, PathServices, ""),
	}
}
